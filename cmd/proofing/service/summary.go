package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/google/uuid"
)

// SummaryService renders a plain-text proof summary for download once
// proofing ends: who selected what, with annotations.
type SummaryService struct {
	collections CollectionStore
	clients     ClientStore
	selections  SelectionStore
	history     *HistoryService
}

func NewSummaryService(collections CollectionStore, clients ClientStore, selections SelectionStore, history *HistoryService) *SummaryService {
	return &SummaryService{
		collections: collections,
		clients:     clients,
		selections:  selections,
		history:     history,
	}
}

// ProofSummary renders the collection's selections as text
func (s *SummaryService) ProofSummary(ctx context.Context, id uuid.UUID) (string, error) {
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return "", err
	}

	clients, err := s.clients.List(ctx, id)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Proof summary: %s\n", c.Title)
	fmt.Fprintf(&b, "Status: %s\n", c.Status)
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format("2006-01-02 15:04"))
	b.WriteString(strings.Repeat("=", 40) + "\n")

	for _, client := range clients {
		fmt.Fprintf(&b, "\n%s [%s]\n", models.CombineNameEmail(client.Name, client.Email), client.Status)

		sel, err := s.selections.Get(ctx, id, client.Ident)
		if err != nil {
			b.WriteString("  no selection saved\n")
			continue
		}

		fmt.Fprintf(&b, "  %d of %d items selected\n", len(sel.Selected), len(c.ActiveItemIDs()))
		for _, itemID := range sel.Selected {
			fmt.Fprintf(&b, "  - item %s", itemID)
			if stars, ok := sel.Stars[itemID]; ok && stars > 0 {
				fmt.Fprintf(&b, " (%d stars)", stars)
			}
			b.WriteString("\n")
			for _, m := range sel.Markers[itemID] {
				fmt.Fprintf(&b, "      note: %s\n", m.Comment)
			}
		}

		for _, field := range sel.ApprovalFields {
			if field.Value != "" {
				fmt.Fprintf(&b, "  %s: %s\n", field.Label, field.Value)
			}
		}
	}

	events, err := s.history.Events(ctx, id)
	if err == nil {
		b.WriteString("\nLog\n")
		for _, e := range events {
			fmt.Fprintf(&b, "  %s  %s", time.Unix(e.Time, 0).Format("2006-01-02 15:04:05"), models.PrettyEvent(e.Event))
			if e.Data != "" {
				fmt.Fprintf(&b, " (%s)", e.Data)
			}
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}
