package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeclarationNamesIdentifier(t *testing.T) {
	require.Equal(t, []string{"a"}, declarationNames(`a = 1`))
}

func TestDeclarationNamesObjectShorthand(t *testing.T) {
	require.Equal(t, []string{"a"}, declarationNames(`{a} = obj`))
}

func TestDeclarationNamesObjectAlias(t *testing.T) {
	require.Equal(t, []string{"b"}, declarationNames(`{a: b} = obj`))
}

func TestDeclarationNamesObjectDefault(t *testing.T) {
	require.Equal(t, []string{"a"}, declarationNames(`{a = 1} = obj`))
}

func TestDeclarationNamesArray(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, declarationNames(`[a, b] = arr`))
}

func TestDeclarationNamesNestedArray(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, declarationNames(`[a, [b, c]] = arr`))
}

func TestDeclarationNamesRest(t *testing.T) {
	require.Equal(t, []string{"head", "tail"}, declarationNames(`[head, ...tail] = arr`))
}

func TestDeclarationNamesTypeAnnotation(t *testing.T) {
	require.Equal(t, []string{"a"}, declarationNames(`a: T = someExpr()`))
}

func TestDeclarationNamesMultipleDeclarators(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, declarationNames(`a = 1, b = 2`))
}

func TestDeclarationNamesArrowInitDoesNotConfuseSplitter(t *testing.T) {
	require.Equal(t, []string{"f", "b"}, declarationNames(`f = (x) => x + 1, b = 2`))
}

func TestDeclarationNamesNestedObjectAliasDefault(t *testing.T) {
	require.Equal(t, []string{"y"}, declarationNames(`{a: {b: y} = {}} = obj`))
}
