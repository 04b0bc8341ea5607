package sqlhost

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/rewrite"
	"github.com/roach88/tombstone/internal/testutil"
)

// openTestClient opens a client over the blog schema in a temp directory.
func openTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	c, err := Open(path, testutil.BlogFacts(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func tree(t *testing.T, s string) ir.IRValue {
	t.Helper()
	v, err := ir.ParseJSON([]byte(s))
	require.NoError(t, err)
	return v
}

func requireJSON(t *testing.T, want string, got ir.IRValue, msgAndArgs ...any) {
	t.Helper()
	w, err := ir.MarshalCanonical(tree(t, want))
	require.NoError(t, err)
	g, err := ir.MarshalCanonical(got)
	require.NoError(t, err)
	require.Equal(t, string(w), string(g), msgAndArgs...)
}

// invoke executes directly, failing the test on error.
func invoke(t *testing.T, c *Client, model string, verb rewrite.Verb, args string) ir.IRValue {
	t.Helper()
	got, err := c.Invoke(context.Background(), model, verb, tree(t, args))
	require.NoError(t, err)
	return got
}

func invokeErr(t *testing.T, c *Client, model string, verb rewrite.Verb, args string) error {
	t.Helper()
	_, err := c.Invoke(context.Background(), model, verb, tree(t, args))
	require.Error(t, err)
	return err
}

// seedBlog creates:
//
//	User    1 Alice (live), 2 Bob (deleted)
//	Profile 1 of Alice
//	Post    1 "Hello" by Alice, 2 "Draft" by Alice (deleted), 3 "Howdy" by Bob
//	Comment 1 on post 1 by Bob, 2 on post 1 by Alice (deleted), 3 reply to 1 by Alice
func seedBlog(t *testing.T, c *Client) {
	t.Helper()
	ops := []struct {
		model string
		args  string
	}{
		{"User", `{"data":{"id":1,"email":"a@x","name":"Alice"}}`},
		{"User", `{"data":{"id":2,"email":"b@x","name":"Bob","deleted":true}}`},
		{"Profile", `{"data":{"id":1,"bio":"hi","userId":1}}`},
		{"Post", `{"data":{"id":1,"title":"Hello","authorId":1}}`},
		{"Post", `{"data":{"id":2,"title":"Draft","authorId":1,"deleted":true}}`},
		{"Post", `{"data":{"id":3,"title":"Howdy","authorId":2}}`},
		{"Comment", `{"data":{"id":1,"content":"first","authorId":2,"postId":1}}`},
		{"Comment", `{"data":{"id":2,"content":"second","authorId":1,"postId":1,"deleted":true}}`},
		{"Comment", `{"data":{"id":3,"content":"reply","authorId":1,"postId":1,"parentId":1}}`},
	}
	for _, op := range ops {
		invoke(t, c, op.model, rewrite.Create, op.args)
	}
}
