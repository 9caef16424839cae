package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const purchasePrompt = "# Purchase agreement\n" +
	"You help {{ agent_name }} draft an offer for {{property_address}}.\n\n" +
	"## Required Fields\n" +
	"- buyer_name: full legal name\n" +
	"- `purchase_price`\n" +
	"* closing_date\n" +
	"- property_address\n\n" +
	"## Style\n" +
	"- keep_it_short\n"

func newLibrary(t *testing.T) *Library {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "purchase.md"), []byte(purchasePrompt), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "counter.txt"), []byte("Counter {{contract_id}}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89}, 0o644))
	return NewLibrary(dir)
}

func TestExtractFields(t *testing.T) {
	assert.Equal(t,
		[]string{"agent_name", "property_address", "buyer_name", "purchase_price", "closing_date"},
		ExtractFields(purchasePrompt),
	)
	assert.Empty(t, ExtractFields("no fields here"))
}

func TestLibrary(t *testing.T) {
	lib := newLibrary(t)

	names, err := lib.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"counter.txt", "purchase.md"}, names)
	assert.Equal(t, 2, lib.Count())

	content, err := lib.Content("purchase")
	require.NoError(t, err)
	assert.Equal(t, purchasePrompt, content)

	fields, err := lib.Fields("counter.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"contract_id"}, fields)

	_, err = lib.Content("missing.md")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = lib.Content("../purchase.md")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMissingDirectoryIsEmpty(t *testing.T) {
	names, err := NewLibrary(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, names)
}
