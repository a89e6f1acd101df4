package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/ffcs/notify"
	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// ErrLibraryImported is returned when a library barcode is imported twice.
var ErrLibraryImported = fmt.Errorf("%w: library already imported", store.ErrConflict)

// ImportLibrary adds a library to the global catalogue under its barcode.
// A barcode that is already present is rejected, never duplicated.
func (e *Engine) ImportLibrary(ctx context.Context, library store.Doc) (string, error) {
	barcode, _ := library["libraryBarcode"].(string)
	if barcode == "" {
		return "", schema.Invalid("libraryBarcode", "cannot be empty")
	}
	doc := library.Clone()
	doc[store.IDField] = barcode

	coll, err := e.store.Collection(store.Libraries)
	if err != nil {
		return "", err
	}
	id, err := coll.InsertOne(ctx, doc)
	if errors.Is(err, store.ErrConflict) {
		return "", fmt.Errorf("%w: %q", ErrLibraryImported, barcode)
	}
	return id, err
}

// Libraries returns the global catalogue.
func (e *Engine) Libraries(ctx context.Context) ([]store.Doc, error) {
	coll, err := e.store.Collection(store.Libraries)
	if err != nil {
		return nil, err
	}
	return coll.Find(ctx, store.Filter{})
}

// Library returns a catalogue library by id.
func (e *Engine) Library(ctx context.Context, id string) (store.Doc, error) {
	return e.findByID(ctx, store.Libraries, id)
}

// InsertCampaignLibrary stores a campaign's curated copy of a library. Any
// id in the input is dropped so that the store assigns a fresh one.
func (e *Engine) InsertCampaignLibrary(ctx context.Context, library store.Doc) (string, error) {
	doc := library.Clone()
	delete(doc, store.IDField)
	user, _ := doc["userAccount"].(string)
	campaign, _ := doc["campaignId"].(string)
	if err := requireNonEmpty("userAccount", user, "campaignId", campaign); err != nil {
		return "", err
	}

	coll, err := e.store.Collection(store.CampaignLibraries)
	if err != nil {
		return "", err
	}
	id, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert campaign library: %w", err)
	}
	e.notes.Post(ctx, user, campaign, notify.TypeLibrary)
	return id, nil
}

// CampaignLibraries returns the campaign libraries of user within campaign.
func (e *Engine) CampaignLibraries(ctx context.Context, user, campaign string) ([]store.Doc, error) {
	coll, err := e.store.Collection(store.CampaignLibraries)
	if err != nil {
		return nil, err
	}
	return coll.Find(ctx, owned(user, campaign))
}

// CampaignLibrary returns a campaign library by id.
func (e *Engine) CampaignLibrary(ctx context.Context, id string) (store.Doc, error) {
	return e.findByID(ctx, store.CampaignLibraries, id)
}

func (e *Engine) findByID(ctx context.Context, collection, id string) (store.Doc, error) {
	coll, err := e.store.Collection(collection)
	if err != nil {
		return nil, err
	}
	doc, err := coll.FindOne(ctx, store.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", collection, id, err)
	}
	return doc, nil
}
