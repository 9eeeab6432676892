// Package expr implements the condition language used to gate intent nodes
// on the results of earlier nodes, and the {{ref}} templates used inside
// node parameters.
//
// The grammar is deliberately small:
//
//	expr       = or
//	or         = and { "||" and }
//	and        = comparison { "&&" comparison }
//	comparison = sum [ ( "==" | "!=" | ">" | "<" | ">=" | "<=" ) sum ]
//	sum        = product { ( "+" | "-" ) product }
//	product    = unary { ( "*" | "/" ) unary }
//	unary      = [ "-" | "!" ] primary
//	primary    = number | string | "true" | "false" | reference | "(" expr ")"
//	reference  = ident { "." ident | "[" digits "]" }
//
// The first identifier of a reference names a node; the rest is a path into
// that node's result. Parsing produces a closed expression tree; nothing is
// ever handed to a general-purpose evaluator.
//
// Comparisons are typed. Numbers compare with numbers, strings with strings
// and booleans with booleans (equality only). Any other pairing, a missing
// path, arithmetic on non-numbers or division by zero makes the whole
// condition false and is reported as a Warning rather than an error.
package expr
