package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

func sampleScenario(name string) Scenario {
	return Scenario{
		Name:           name,
		Description:    "Buyer starts a new purchase agreement",
		Tags:           []string{"new", "purchase"},
		Category:       "purchase",
		ContractType:   "residential_purchase",
		Mode:           "New",
		MockPromptFile: "purchase_agreement.md",
		PrefilledFields: map[string]string{
			"property_address": "12 Elm St",
		},
		MockExtractResponses: []MockExtractResponse{{
			MissingFieldsCount: 3,
			FieldsJSON:         map[string]any{"buyer_name": "Jane"},
		}},
		ErrorConfig: map[string]bool{"extraction_fails": false},
		Turns: []TurnSpec{
			{UserInput: "I want to make an offer", ExpectToolCall: ExpectTool("get_prompt"), ExpectFieldNotAsked: []string{"property_address"}},
			{UserInput: "", ExpectNoToolCall: true, ExpectContains: []string{"buyer"}},
		},
	}
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	return store
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "new-offer-basic-flow", Slugify("  New Offer: Basic flow! "))
	assert.Equal(t, "counter-offer-2", Slugify("Counter_offer--2"))
	assert.Equal(t, "", Slugify("!!!"))
	assert.Equal(t, "new-offer.yaml", FilePathFor("New Offer"))
}

func TestFileStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	summary, err := store.Create(ctx, sampleScenario("New Offer Basic"))
	require.NoError(t, err)
	assert.Equal(t, "new-offer-basic.yaml", summary.FilePath)
	assert.Equal(t, 2, summary.TurnCount)
	assert.FileExists(t, filepath.Join(store.Dir(), summary.FilePath))

	for _, ref := range []string{summary.FilePath, "New Offer Basic", "new-offer-basic"} {
		detail, err := store.Get(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, "New Offer Basic", detail.Name)
		assert.Equal(t, summary.FilePath, detail.FilePath)
		assert.Equal(t, "get_prompt", detail.Turns[0].ExpectToolCall.Name)
		assert.True(t, detail.Turns[1].ExpectNoToolCall)
		assert.Equal(t, "12 Elm St", detail.PrefilledFields["property_address"])
		assert.Equal(t, 3, detail.MockExtractResponses[0].MissingFieldsCount)
	}

	_, err = store.Create(ctx, sampleScenario("new offer basic"))
	assert.True(t, errors.Is(err, ErrConflict))

	updated := sampleScenario("New Offer Basic")
	updated.Turns = updated.Turns[:1]
	summary, err = store.Update(ctx, summary.FilePath, updated)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TurnCount)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, store.Count())

	require.NoError(t, store.Delete(ctx, summary.FilePath))
	_, err = store.Get(ctx, summary.FilePath)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, summary.FilePath), ErrNotFound))
}

func TestFileStoreRenameMovesFile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.Create(ctx, sampleScenario("Draft"))
	require.NoError(t, err)
	_, err = store.Create(ctx, sampleScenario("Taken"))
	require.NoError(t, err)

	_, err = store.Update(ctx, first.FilePath, sampleScenario("Taken"))
	assert.True(t, errors.Is(err, ErrConflict))

	renamed, err := store.Update(ctx, first.FilePath, sampleScenario("Final Name"))
	require.NoError(t, err)
	assert.Equal(t, "final-name.yaml", renamed.FilePath)
	assert.NoFileExists(t, filepath.Join(store.Dir(), first.FilePath))
}

func TestFileStoreRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	sc := sampleScenario("Bad")
	sc.Turns[0].ExpectNoToolCall = true

	_, err := store.Create(context.Background(), sc)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Equal(t, 0, store.Count())

	_, err = store.Create(context.Background(), Scenario{Name: "  "})
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestFileStoreListSkipsUnreadableFiles(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.Create(ctx, sampleScenario("Good"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "broken.yaml"), []byte("turns: [::"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("ignore"), 0o644))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Good", list[0].Name)
	assert.Equal(t, []string{"new", "purchase"}, list[0].Tags)
}

func TestFileStoreConflictsWithYMLFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	legacy := sampleScenario("Counter Offer")
	data, err := yaml.Marshal(&legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "counter-offer.yml"), data, 0o644))

	_, err = store.Create(ctx, sampleScenario("Counter Offer"))
	assert.True(t, errors.Is(err, ErrConflict), "expected conflict, got %v", err)
	_, statErr := os.Stat(filepath.Join(store.Dir(), "counter-offer.yaml"))
	assert.True(t, os.IsNotExist(statErr), "no shadowing .yaml file may be written")

	_, err = store.Create(ctx, sampleScenario("New Offer"))
	require.NoError(t, err)
	_, err = store.Update(ctx, "new-offer.yaml", sampleScenario("Counter Offer"))
	assert.True(t, errors.Is(err, ErrConflict), "rename onto a .yml scenario must conflict, got %v", err)

	// rewriting the .yml scenario under its own name is not a conflict
	summary, err := store.Update(ctx, "counter-offer", sampleScenario("Counter Offer"))
	require.NoError(t, err)
	assert.Equal(t, "counter-offer.yaml", summary.FilePath)
	assert.Equal(t, 2, store.Count())
}
