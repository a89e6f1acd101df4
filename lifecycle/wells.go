package lifecycle

import (
	"context"
	"fmt"

	"github.com/jacentio/ffcs/notify"
	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// RegisterWell validates and inserts a single well and returns its id.
func (e *Engine) RegisterWell(ctx context.Context, in schema.WellInput) (string, error) {
	doc, err := schema.BuildWellRecord(in)
	if err != nil {
		return "", err
	}
	coll, err := e.wells()
	if err != nil {
		return "", err
	}
	id, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("register well %s/%s: %w", in.PlateID, in.Well, err)
	}
	return id, nil
}

// RegisterWells validates every well first, then inserts them in order.
// On an insert failure the wells already inserted stay, and their ids are
// returned with the error. A wells notification follows when at least one
// well was inserted; it goes to the owner of the last inserted well.
func (e *Engine) RegisterWells(ctx context.Context, ins []schema.WellInput) ([]string, error) {
	docs := make([]store.Doc, len(ins))
	for i, in := range ins {
		doc, err := schema.BuildWellRecord(in)
		if err != nil {
			return nil, fmt.Errorf("well %d: %w", i, err)
		}
		docs[i] = doc
	}
	coll, err := e.wells()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	var insertErr error
	for i, doc := range docs {
		id, err := coll.InsertOne(ctx, doc)
		if err != nil {
			insertErr = fmt.Errorf("register well %d (%s/%s): %w", i, ins[i].PlateID, ins[i].Well, err)
			break
		}
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		last := ins[len(ids)-1]
		e.notes.Post(ctx, last.UserAccount, last.CampaignID, notify.TypeWells)
	}
	return ids, insertErr
}

// AllWells returns every well of user within campaign.
func (e *Engine) AllWells(ctx context.Context, user, campaign string) ([]schema.Well, error) {
	return e.findWells(ctx, owned(user, campaign))
}

// WellsForPlate returns the wells of a plate. extra adds equality
// conditions on further well fields.
func (e *Engine) WellsForPlate(ctx context.Context, user, campaign, plateID string, extra map[string]any) ([]schema.Well, error) {
	f := owned(user, campaign, store.Eq("plateId", plateID))
	if len(extra) > 0 {
		f = store.And(f, store.Where(extra))
	}
	return e.findWells(ctx, f)
}

// Well returns a well by id.
func (e *Engine) Well(ctx context.Context, id string) (schema.Well, error) {
	coll, err := e.wells()
	if err != nil {
		return schema.Well{}, err
	}
	doc, err := coll.FindOne(ctx, store.ByID(id))
	if err != nil {
		return schema.Well{}, fmt.Errorf("well %s: %w", id, err)
	}
	return schema.WellFromDoc(doc), nil
}

// Smiles returns the SMILES of the compound soaked into the crystal
// xtalName, or nil if no such crystal exists.
func (e *Engine) Smiles(ctx context.Context, user, campaign, xtalName string) (*string, error) {
	wells, err := e.findWells(ctx, owned(user, campaign, store.Eq("xtalName", xtalName)), store.Limit(1))
	if err != nil || len(wells) == 0 {
		return nil, err
	}
	return wells[0].Smiles, nil
}

// UpdateNotes replaces the free-text notes of a well.
func (e *Engine) UpdateNotes(ctx context.Context, user, campaign, wellID, note string) (store.UpdateResult, error) {
	return e.UpdateFields(ctx, store.Wells, wellID, user, campaign, store.Doc{"notes": note})
}

func (e *Engine) findWells(ctx context.Context, f store.Filter, opts ...store.FindOption) ([]schema.Well, error) {
	coll, err := e.wells()
	if err != nil {
		return nil, err
	}
	docs, err := coll.Find(ctx, f, opts...)
	if err != nil {
		return nil, err
	}
	return schema.WellsFromDocs(docs), nil
}
