package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jacentio/ffcs/notify"
	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// Owner identifies who a plate belongs to.
type Owner struct {
	User     string `json:"user"`
	Campaign string `json:"campaign_id"`
}

// RegisterPlate validates and inserts a plate and returns its id.
func (e *Engine) RegisterPlate(ctx context.Context, in schema.PlateInput) (string, error) {
	doc, err := schema.BuildPlateRecord(in, e.timestamp())
	if err != nil {
		return "", err
	}
	coll, err := e.plates()
	if err != nil {
		return "", err
	}
	id, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("register plate %s: %w", in.PlateID, err)
	}
	e.notes.Post(ctx, in.UserAccount, in.CampaignID, notify.TypePlates)
	return id, nil
}

// Plate returns one plate of user within campaign.
func (e *Engine) Plate(ctx context.Context, user, campaign, plateID string) (schema.Plate, error) {
	coll, err := e.plates()
	if err != nil {
		return schema.Plate{}, err
	}
	doc, err := coll.FindOne(ctx, owned(user, campaign, store.Eq("plateId", plateID)))
	if err != nil {
		return schema.Plate{}, fmt.Errorf("plate %s: %w", plateID, err)
	}
	return schema.PlateFromDoc(doc), nil
}

// Plates returns every plate of user within campaign.
func (e *Engine) Plates(ctx context.Context, user, campaign string) ([]schema.Plate, error) {
	coll, err := e.plates()
	if err != nil {
		return nil, err
	}
	docs, err := coll.Find(ctx, owned(user, campaign))
	if err != nil {
		return nil, err
	}
	return schema.PlatesFromDocs(docs), nil
}

// Campaigns returns the distinct campaign ids of user's plates, sorted.
func (e *Engine) Campaigns(ctx context.Context, user string) ([]string, error) {
	coll, err := e.plates()
	if err != nil {
		return nil, err
	}
	docs, err := coll.Find(ctx, store.Eq("userAccount", user))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	campaigns := []string{}
	for _, d := range docs {
		c, _ := d["campaignId"].(string)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		campaigns = append(campaigns, c)
	}
	sort.Strings(campaigns)
	return campaigns, nil
}

// PlateExists reports whether any user registered plateID.
func (e *Engine) PlateExists(ctx context.Context, plateID string) (bool, error) {
	coll, err := e.plates()
	if err != nil {
		return false, err
	}
	n, err := coll.Count(ctx, store.Eq("plateId", plateID))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UnselectedPlates returns user's plates whose soak places are not yet
// selected, across all campaigns.
func (e *Engine) UnselectedPlates(ctx context.Context, user string) ([]schema.Plate, error) {
	coll, err := e.plates()
	if err != nil {
		return nil, err
	}
	docs, err := coll.Find(ctx, store.And(
		store.Eq("userAccount", user),
		store.Eq("soakPlacesSelected", false),
	))
	if err != nil {
		return nil, err
	}
	return schema.PlatesFromDocs(docs), nil
}

// MarkPlateDone records that soak places were selected on a plate. It
// fails with store.ErrConditionFailed when no such plate exists.
func (e *Engine) MarkPlateDone(ctx context.Context, user, campaign, plateID string, lastImaged time.Time, batchID *string) (store.UpdateResult, error) {
	if err := requireNonEmpty("userAccount", user, "campaignId", campaign, "plateId", plateID); err != nil {
		return store.UpdateResult{}, err
	}
	coll, err := e.plates()
	if err != nil {
		return store.UpdateResult{}, err
	}
	res, err := coll.UpdateOne(ctx, owned(user, campaign, store.Eq("plateId", plateID)), store.Set(store.Doc{
		"soakPlacesSelected": true,
		"lastImaged":         lastImaged.UTC(),
		"batchId":            batchID,
	}))
	if err != nil {
		return res, err
	}
	if res.Matched == 0 {
		return res, fmt.Errorf("%w: plate %s of %s/%s", store.ErrConditionFailed, plateID, user, campaign)
	}
	if res.Modified == 1 {
		e.notes.Post(ctx, user, campaign, notify.TypePlates)
	}
	return res, nil
}

// PlateOwner returns the owner of plateID. Plate ids come from instrument
// feeds without a user, so the first plate carrying the id wins.
func (e *Engine) PlateOwner(ctx context.Context, plateID string) (Owner, error) {
	coll, err := e.plates()
	if err != nil {
		return Owner{}, err
	}
	doc, err := coll.FindOne(ctx, store.Eq("plateId", plateID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Owner{}, fmt.Errorf("owner of plate %s: %w", plateID, err)
		}
		return Owner{}, err
	}
	user, _ := doc["userAccount"].(string)
	campaign, _ := doc["campaignId"].(string)
	return Owner{User: user, Campaign: campaign}, nil
}

// PlateDeletion reports what DeletePlate removed.
type PlateDeletion struct {
	Plates int64 `json:"plates"`
	Wells  int64 `json:"wells"`
}

// DeletePlate removes a plate and its wells. The two deletes are not
// atomic; the wells go first so that a failure never leaves orphans.
func (e *Engine) DeletePlate(ctx context.Context, user, campaign, plateID string) (PlateDeletion, error) {
	var out PlateDeletion
	if err := requireNonEmpty("userAccount", user, "campaignId", campaign, "plateId", plateID); err != nil {
		return out, err
	}
	wells, err := e.wells()
	if err != nil {
		return out, err
	}
	plates, err := e.plates()
	if err != nil {
		return out, err
	}
	scope := owned(user, campaign, store.Eq("plateId", plateID))
	if out.Wells, err = wells.DeleteMany(ctx, scope); err != nil {
		return out, fmt.Errorf("delete wells of plate %s: %w", plateID, err)
	}
	if out.Plates, err = plates.DeleteMany(ctx, scope); err != nil {
		return out, fmt.Errorf("delete plate %s: %w", plateID, err)
	}
	if out.Plates > 0 || out.Wells > 0 {
		e.notes.Post(ctx, user, campaign, notify.TypePlates)
	}
	return out, nil
}
