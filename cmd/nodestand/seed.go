package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"nodestand-backend/application/services"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	"nodestand-backend/infrastructure/di"
	"nodestand-backend/infrastructure/identity"
)

var seedUsers = []entities.User{
	{ID: "tarehart", Authors: []entities.Author{{StableID: "tarehart", DisplayName: "Tyler"}}},
	{ID: "charles", Authors: []entities.Author{{StableID: "charles", DisplayName: "Charles"}}},
}

// SeedResult names the nodes created by seed.
type SeedResult struct {
	Source         valueobjects.NodeID   `json:"source"`
	Interpretation valueobjects.NodeID   `json:"interpretation"`
	MealsBenefit   valueobjects.NodeID   `json:"mealsBenefit"`
	TablesHelpful  valueobjects.NodeID   `json:"tablesHelpful"`
	RootStableID   valueobjects.StableID `json:"rootStableId"`
}

func newSeedCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate the demo argument",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd, open, func(ctx context.Context, c *di.Container) error {
				if err := ensureUsers(c.Directory, seedUsers); err != nil {
					return err
				}
				result, err := seed(ctx, c.Service)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
}

// ensureUsers adds the users the directory does not know yet.
func ensureUsers(dir *identity.Directory, users []entities.User) error {
	existing := dir.Users()
	known := make(map[string]bool, len(existing))
	for _, u := range existing {
		known[u.ID] = true
	}
	for _, u := range users {
		if !known[u.ID] {
			existing = append(existing, u)
		}
	}
	return dir.Replace(existing)
}

// seed builds the tables-and-meals argument through the service, publishing
// charles's interpretation first and then tarehart's assertions on top.
func seed(ctx context.Context, svc *services.ArgumentService) (*SeedResult, error) {
	source, err := svc.CreateSource(ctx, "charles", "charles", services.SourceInput{
		Title: "Tables Weekly, vol 32",
		URL:   "http://www.google.com",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}
	sourceID := source.Node.ID()
	interp, err := svc.CreateInterpretation(ctx, "charles", "charles", services.InterpretationInput{
		Title:    "Tables provide a flat surface",
		Body:     "Tables Weekly suggests that tables provide a flat surface based on my reading of the third paragraph.",
		SourceID: &sourceID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create interpretation: %w", err)
	}
	if _, err := svc.Publish(ctx, "charles", interp.Node.ID()); err != nil {
		return nil, fmt.Errorf("failed to publish interpretation: %w", err)
	}

	meals, err := svc.CreateAssertion(ctx, "tarehart", "tarehart", services.AssertionInput{
		Title: "It is easier to eat a meal if you have a flat surface",
		Body:  "Meals are easier to eat if you have a flat surface because your sandwich won't roll around.",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assertion: %w", err)
	}

	body := fmt.Sprintf("Tables help with meals because {{[%s]They provide a flat surface}} which is {{[%s]helpful}}.",
		interp.Node.Body().MajorVersion().StableID, meals.Node.Body().MajorVersion().StableID)
	tables, err := svc.CreateAssertion(ctx, "tarehart", "tarehart", services.AssertionInput{
		Title: "Tables are helpful for meals.",
		Body:  body,
		Links: []valueobjects.NodeID{interp.Node.ID(), meals.Node.ID()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assertion: %w", err)
	}
	if _, err := svc.Publish(ctx, "tarehart", tables.Node.ID()); err != nil {
		return nil, fmt.Errorf("failed to publish assertion: %w", err)
	}

	return &SeedResult{
		Source:         sourceID,
		Interpretation: interp.Node.ID(),
		MealsBenefit:   meals.Node.ID(),
		TablesHelpful:  tables.Node.ID(),
		RootStableID:   tables.Node.StableID(),
	}, nil
}
