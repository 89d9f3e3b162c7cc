package services

import (
	"context"
	"fmt"

	"github.com/shelfsync/shelfsync-backend/internal/conversation"
	"github.com/shelfsync/shelfsync-backend/internal/logger"
	"github.com/shelfsync/shelfsync-backend/internal/pipeline"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// IncomingScan is a document arriving from a messaging channel.
type IncomingScan struct {
	DocumentID string `json:"document_id" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Channel    string `json:"channel"`
	Author     string `json:"author"`
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	URL        string `json:"url"`
}

// IntakeService onboards incoming documents: it persists the scan, opens a
// conversation context for it, and starts its pipeline.
type IntakeService interface {
	Onboard(ctx context.Context, in IncomingScan) error
}

type intakeService struct {
	log    *logger.Logger
	scans  repos.ScanRepo
	stores repos.StoreRepo
	orch   *pipeline.Orchestrator
	conv   *conversation.Manager
}

func NewIntakeService(baseLog *logger.Logger, scans repos.ScanRepo, stores repos.StoreRepo, orch *pipeline.Orchestrator, conv *conversation.Manager) IntakeService {
	return &intakeService{
		log:    baseLog.With("service", "IntakeService"),
		scans:  scans,
		stores: stores,
		orch:   orch,
		conv:   conv,
	}
}

func (s *intakeService) Onboard(ctx context.Context, in IncomingScan) error {
	store, err := s.stores.GetByPhone(ctx, nil, in.Phone)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("no store registered for phone")
	}

	if _, err := s.scans.Create(ctx, nil, &types.Scan{
		ID:       in.DocumentID,
		StoreID:  store.StoreID,
		Channel:  in.Channel,
		Author:   in.Author,
		FileID:   in.FileID,
		Filename: in.Filename,
		URL:      in.URL,
	}); err != nil {
		return fmt.Errorf("persist scan: %w", err)
	}

	// Context before pipeline: stage workers may message the user as soon as
	// the first job is claimed.
	if err := s.conv.InitializeContext(ctx, in.Phone, in.DocumentID); err != nil {
		return fmt.Errorf("initialize conversation context: %w", err)
	}

	if err := s.orch.Start(ctx, in.DocumentID); err != nil {
		return err
	}

	s.log.Info("Document onboarded", "document_id", in.DocumentID, "store_id", store.StoreID)
	return nil
}
