package sqlhost

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tombstone/internal/dispatch"
	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/policy"
	"github.com/roach88/tombstone/internal/rewrite"
)

// registered returns a seeded client with soft delete enabled on every
// blog model except Profile.
func registered(t *testing.T) *Client {
	t.Helper()
	c := openTestClient(t)
	seedBlog(t, c)

	registry := policy.MustRegistry(policy.Default(), map[string]policy.Setting{
		"User":    policy.Enabled(),
		"Post":    policy.Enabled(),
		"Comment": policy.Enabled(),
	})
	dispatch.Register(c, rewrite.NewEngine(registry, c.Facts()),
		dispatch.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return c
}

func do(t *testing.T, c *Client, model string, verb rewrite.Verb, args string) ir.IRValue {
	t.Helper()
	got, err := c.Do(context.Background(), model, verb, tree(t, args))
	require.NoError(t, err)
	return got
}

func TestExtension_DeleteMarksInsteadOfRemoving(t *testing.T) {
	c := registered(t)

	got := do(t, c, "Post", rewrite.Delete, `{"where":{"id":1}}`)
	requireJSON(t, `{"id":1,"title":"Hello","content":null,"authorId":1,"deleted":true,"deletedAt":null}`, got)

	// The row survives; only direct access still sees it.
	assert.Equal(t, ir.IRInt(3), invoke(t, c, "Post", rewrite.Count, `{}`))
	assert.Equal(t, ir.IRInt(1), do(t, c, "Post", rewrite.Count, `{}`))

	requireJSON(t, `[{"id":3}]`, do(t, c, "Post", rewrite.FetchMany, `{"select":{"id":true}}`))
	assert.Equal(t, ir.IRNull{}, do(t, c, "Post", rewrite.FetchOne, `{"where":{"id":1}}`))
}

func TestExtension_DeleteManyAndNestedDeletes(t *testing.T) {
	c := registered(t)

	requireJSON(t, `{"count":2}`, do(t, c, "Comment", rewrite.DeleteMany, `{"where":{"postId":1}}`),
		"comment 2 is already deleted and not counted again")
	assert.Equal(t, ir.IRInt(3), invoke(t, c, "Comment", rewrite.Count, `{"where":{"deleted":true}}`))

	do(t, c, "User", rewrite.Update, `{"where":{"id":1},"data":{"posts":{"deleteMany":{}}}}`)
	assert.Equal(t, ir.IRInt(2), invoke(t, c, "Post", rewrite.Count, `{"where":{"deleted":true}}`))
	assert.Equal(t, ir.IRInt(3), invoke(t, c, "Post", rewrite.Count, `{}`))
}

func TestExtension_ReadsHideDeletedRelations(t *testing.T) {
	c := registered(t)

	got := do(t, c, "Comment", rewrite.FetchMany, `{"select":{"id":true,"author":{"select":{"name":true}}}}`)
	requireJSON(t, `[{"id":1,"author":null},{"id":3,"author":{"name":"Alice"}}]`, got)

	got = do(t, c, "User", rewrite.FetchMany, `{"select":{"id":true,"posts":{"select":{"id":true}}}}`)
	requireJSON(t, `[{"id":1,"posts":[{"id":1}]}]`, got)

	got = do(t, c, "User", rewrite.FetchMany, `{"where":{"posts":{"every":{"title":"Hello"}}},"select":{"id":true}}`)
	requireJSON(t, `[{"id":1}]`, got, "the deleted draft does not fail every")

	got = do(t, c, "User", rewrite.FetchMany, `{"where":{"posts":{"some":{"title":"Draft"}}},"select":{"id":true}}`)
	requireJSON(t, `[]`, got)
}

func TestExtension_BlocksToOneUpdates(t *testing.T) {
	c := registered(t)

	_, err := c.Do(context.Background(), "Post", rewrite.Update,
		tree(t, `{"where":{"id":3},"data":{"title":"x","author":{"update":{"name":"Robert"}}}}`))
	require.Error(t, err)
	assert.True(t, rewrite.IsBlocked(err, rewrite.ErrCodeToOneUpdate))

	got := invoke(t, c, "Post", rewrite.FetchOne, `{"where":{"id":3},"select":{"title":true,"author":{"select":{"name":true}}}}`)
	requireJSON(t, `{"title":"Howdy","author":{"name":"Bob"}}`, got)
}

func TestExtension_UnconfiguredModelIsUntouched(t *testing.T) {
	c := registered(t)

	do(t, c, "Profile", rewrite.Delete, `{"where":{"id":1}}`)
	assert.Equal(t, ir.IRInt(0), invoke(t, c, "Profile", rewrite.Count, `{}`))
}

func TestExtension_NullMarkerReadsLiveRows(t *testing.T) {
	c := registered(t)

	got := do(t, c, "Comment", rewrite.FetchMany, `{"where":{"postId":1,"deleted":null},"select":{"id":true}}`)
	requireJSON(t, `[{"id":1},{"id":3}]`, got)

	// Direct access still compares the column with NULL.
	requireJSON(t, `[]`, invoke(t, c, "Comment", rewrite.FetchMany, `{"where":{"postId":1,"deleted":null}}`))
}

func TestExtension_DeleteWithNullWhereReachesStore(t *testing.T) {
	c := registered(t)

	_, err := c.Do(context.Background(), "Comment", rewrite.Delete, tree(t, `{"where":null}`))
	require.Error(t, err)
	assert.True(t, IsQueryError(err))
	assert.Equal(t, ir.IRInt(1), invoke(t, c, "Comment", rewrite.Count, `{"where":{"deleted":true}}`))
}

func TestExtension_RelatedGoesThroughInterceptor(t *testing.T) {
	c := registered(t)
	ctx := context.Background()
	related := func(model string, id int64, relation string, shape string) ir.IRValue {
		t.Helper()
		var s ir.IRValue
		if shape != "" {
			s = tree(t, shape)
		}
		got, err := c.Related(ctx, model, ir.IRObject{"id": ir.IRInt(id)}, relation, s)
		require.NoError(t, err)
		return got
	}

	assert.Equal(t, ir.IRNull{}, related("Post", 3, "author", ""), "Bob is deleted")
	requireJSON(t, `{"name":"Alice"}`, related("Post", 1, "author", `{"select":{"name":true}}`),
		"the injected marker is stripped")
	requireJSON(t, `[{"id":1}]`, related("User", 1, "posts", `{"select":{"id":true}}`))

	assert.Equal(t, ir.IRNull{}, related("Post", 2, "author", ""), "the parent post is deleted")
	assert.Equal(t, ir.IRArray{}, related("User", 2, "posts", ""))

	// An unconfigured parent still has its relation rewritten.
	raw, err := c.Related(ctx, "Profile", ir.IRObject{"id": ir.IRInt(1)}, "user", tree(t, `{"select":{"name":true}}`))
	require.NoError(t, err)
	requireJSON(t, `{"name":"Alice"}`, raw)

	_, err = c.Related(ctx, "Post", ir.IRObject{"id": ir.IRInt(1)}, "editor", nil)
	require.Error(t, err)
	assert.True(t, IsQueryError(err))
}
