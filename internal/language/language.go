// Package language exposes the parts of the gqlparser AST the executor and
// the selection builder work with.
package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ParseQuery parses source into a query document. The document is not
// validated against a schema.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query.graphql", Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}
