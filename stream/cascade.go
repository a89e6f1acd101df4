// Package stream provides DynamoDB Streams handlers for cascade operations.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/ffcs/internal/scope"
	"github.com/jacentio/ffcs/notify"
	"github.com/jacentio/ffcs/store"
)

// Handler processes DynamoDB stream events of the plates table and removes
// the wells of deleted plates.
type Handler struct {
	store       *store.Store
	notes       *notify.Log
	platesTable string
	logger      *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(s *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		store:  s,
		notes:  notify.NewLog(s, logger),
		logger: logger,
	}
	if s != nil {
		cfg := s.Config()
		h.platesTable = cfg.Database + "_" + cfg.Collections[store.Plates]
	}
	return h
}

// HandlePlateRemoval processes DynamoDB stream events and deletes the wells
// of every removed plate. This function is designed to be used as an AWS
// Lambda handler.
func (h *Handler) HandlePlateRemoval(ctx context.Context, event events.DynamoDBEvent) error {
	for i := range event.Records {
		record := &event.Records[i]
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" || !h.fromPlates(record.EventSourceArn) {
		return nil
	}

	old := record.Change.OldImage
	plateID := getStringAttr(old, "plateId")
	if plateID == "" || getStringAttr(old, "well") != "" {
		return nil
	}
	user := getStringAttr(old, "userAccount")
	campaign := getStringAttr(old, "campaignId")
	if user == "" || campaign == "" {
		user, campaign, _ = scope.Split(getStringAttr(old, "_scope"))
	}
	if user == "" || campaign == "" {
		h.logger.Warn("removed plate without owner",
			"eventID", record.EventID,
			"plateId", plateID,
		)
		return nil
	}

	h.logger.Info("processing plate removal",
		"plateId", plateID,
		"userAccount", user,
		"campaignId", campaign,
	)

	wells, err := h.store.Collection(store.Wells)
	if err != nil {
		return err
	}
	// Deleting already-deleted wells matches nothing, so retries are safe.
	n, err := wells.DeleteMany(ctx, store.And(
		store.Eq("userAccount", user),
		store.Eq("campaignId", campaign),
		store.Eq("plateId", plateID),
	))
	if err != nil {
		return fmt.Errorf("delete wells of plate %s: %w", plateID, err)
	}
	if n > 0 {
		h.notes.Post(ctx, user, campaign, notify.TypeWells)
	}

	h.logger.Info("plate removal completed",
		"plateId", plateID,
		"wellsDeleted", n,
	)
	return nil
}

// fromPlates reports whether an event source ARN belongs to the plates
// table. Without a store every source is accepted.
func (h *Handler) fromPlates(arn string) bool {
	if h.platesTable == "" || arn == "" {
		return true
	}
	return strings.Contains(arn, ":table/"+h.platesTable+"/stream/")
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
