package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"", KindRoot},
		{"/", KindRoot},
		{"col", KindCollection},
		{"col/doc", KindDocument},
		{"/col/doc/", KindDocument},
		{"col/doc/sub", KindCollection},
		{"col/doc/sub/leaf", KindDocument},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			got, err := Classify(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassify_EmptyInnerSegment(t *testing.T) {
	_, err := Classify("col//doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty segment")
}

func TestRequire(t *testing.T) {
	got, err := RequireDocument("/users/alice/")
	require.NoError(t, err)
	assert.Equal(t, "users/alice", got)

	_, err = RequireDocument("users")
	require.Error(t, err)
	assert.True(t, IsParityError(err))

	var pe *PathParityError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindDocument, pe.Expected)
	assert.Equal(t, KindCollection, pe.Actual)
	assert.Equal(t, "users", pe.Path)
	assert.Equal(t, `expected document path, got collection path "users"`, pe.Error())

	_, err = RequireCollection("users/alice")
	assert.True(t, IsParityError(err))

	_, err = RequireCollection("")
	assert.True(t, IsParityError(err))

	_, err = RequireCollection("a//b")
	require.ErrorAs(t, err, &pe)
	assert.NotEmpty(t, pe.Reason)
}

func TestIsDocumentIsCollection(t *testing.T) {
	assert.True(t, IsDocument("a/b"))
	assert.False(t, IsDocument("a"))
	assert.True(t, IsCollection("a"))
	assert.False(t, IsCollection("a/b"))
	assert.False(t, IsCollection("a//b/c"))
}

func TestJoinBaseParent(t *testing.T) {
	assert.Equal(t, "a/b/c", Join("/a/", "b", "", "c/"))
	assert.Equal(t, "", Join())
	assert.Equal(t, "doc", Base("col/doc"))
	assert.Equal(t, "col", Base("col"))
	assert.Equal(t, "col", Parent("col/doc"))
	assert.Equal(t, "col/doc", Parent("col/doc/sub"))
	assert.Equal(t, "", Parent("col"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "root", KindRoot.String())
	assert.Equal(t, "collection", KindCollection.String())
	assert.Equal(t, "document", KindDocument.String())
}
