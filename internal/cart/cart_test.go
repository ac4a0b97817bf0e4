package cart

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	icons = Item{ProductID: "p1", Name: "Icons", Price: "10.00"}
	kit   = Item{ProductID: "p2", Name: "Kit", Price: "5.00"}
)

func TestAdd_IgnoresDuplicates(t *testing.T) {
	c := New()
	assert.True(t, c.Add(icons))
	assert.False(t, c.Add(icons))
	assert.True(t, c.Add(kit))
	assert.Equal(t, []Item{icons, kit}, c.Items())
	assert.Equal(t, []string{"p1", "p2"}, c.ProductIDs())
}

func TestRemoveAndClear(t *testing.T) {
	c := New()
	c.Add(icons)
	c.Add(kit)

	assert.True(t, c.Remove("p1"))
	assert.False(t, c.Remove("p1"))
	assert.Equal(t, []Item{kit}, c.Items())

	c.Clear()
	assert.Empty(t, c.Items())
}

func TestItems_ReturnsCopy(t *testing.T) {
	c := New()
	c.Add(icons)
	items := c.Items()
	items[0].Name = "changed"
	assert.Equal(t, "Icons", c.Items()[0].Name)
}

func TestSubscribe(t *testing.T) {
	c := New()
	var got [][]Item
	unsubscribe := c.Subscribe(func(items []Item) { got = append(got, items) })

	c.Add(icons)
	c.Add(icons)
	c.Add(kit)
	c.Remove("p1")
	require.Len(t, got, 3, "no-op changes do not notify")
	assert.Equal(t, []Item{icons}, got[0])
	assert.Equal(t, []Item{kit}, got[2])

	unsubscribe()
	unsubscribe()
	c.Clear()
	assert.Len(t, got, 3)
}

func TestSubscribe_CanReadCartFromCallback(t *testing.T) {
	c := New()
	var seen int
	c.Subscribe(func([]Item) { seen = len(c.Items()) })
	c.Add(icons)
	assert.Equal(t, 1, seen)
}

func TestConcurrentAdds(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(icons)
			c.Add(kit)
		}()
	}
	wg.Wait()
	assert.Len(t, c.Items(), 2)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cart.json")
	c := New()
	c.Add(icons)
	c.Add(kit)
	require.NoError(t, c.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"productId":"p1","name":"Icons","price":"10.00"},{"productId":"p2","name":"Kit","price":"5.00"}]}`, string(raw))

	loaded := New()
	var notified bool
	loaded.Subscribe(func([]Item) { notified = true })
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, c.Items(), loaded.Items())
	assert.True(t, notified)
}

func TestSave_EmptyCart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	require.NoError(t, New().Save(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(raw))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	c := New()
	c.Add(icons)
	require.NoError(t, c.Load(filepath.Join(t.TempDir(), "nope.json")))
	assert.Empty(t, c.Items())
}

func TestLoad_DropsDuplicatesAndBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cart.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"items":[{"productId":"p1"},{"productId":"p1"},{"productId":""}]}`), 0o600))

	c := New()
	require.NoError(t, c.Load(path))
	assert.Equal(t, []string{"p1"}, c.ProductIDs())

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	assert.Error(t, c.Load(path))
}
