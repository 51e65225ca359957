package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "snap/page.html", "text/html", strings.NewReader("<html>"))
	require.NoError(t, err)
	require.Equal(t, "memory://snap/page.html", uri)

	body, ct, ok := store.Object("snap/page.html")
	require.True(t, ok)
	require.Equal(t, "text/html", ct)
	body[0] = 'X'
	again, _, _ := store.Object("snap/page.html")
	require.Equal(t, "<html>", string(again))
	require.Equal(t, []string{"snap/page.html"}, store.Paths())
}
