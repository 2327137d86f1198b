package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cuemby/streakline/pkg/schedule"
	"github.com/cuemby/streakline/pkg/storage"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply challenges and habits from a YAML file",
	Long: `Apply Challenge and Habit resources from a YAML file. Several resources
may be given in one file, separated by "---".

Challenges are immutable once created; applying an existing challenge is a
no-op. Habits are created or replaced.

Examples:
  # Load a challenge definition
  streakline apply -f challenge.yaml

  # Load a user's habits
  streakline apply -f habits.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// Resource is one document of an apply file
type Resource struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ResourceMetadata `yaml:"metadata"`
	Spec       yaml.Node        `yaml:"spec"`
}

type ResourceMetadata struct {
	Name string `yaml:"name"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}
	defer f.Close()

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	return applyResources(eng.store, f, cmd.OutOrStdout(), time.Now())
}

// applyResources applies every document in r. It stops at the first invalid
// resource; resources before it stay applied.
func applyResources(store storage.Store, r io.Reader, out io.Writer, now time.Time) error {
	dec := yaml.NewDecoder(r)
	for i := 1; ; i++ {
		var resource Resource
		err := dec.Decode(&resource)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to parse YAML document %d: %v", i, err)
		}

		switch resource.Kind {
		case "Challenge":
			err = applyChallenge(store, &resource, out, now)
		case "Habit":
			err = applyHabit(store, &resource, out, now)
		case "":
			err = fmt.Errorf("kind is required")
		default:
			err = fmt.Errorf("unsupported resource kind: %s", resource.Kind)
		}
		if err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}
}

func applyChallenge(store storage.Store, resource *Resource, out io.Writer, now time.Time) error {
	var challenge types.Challenge
	if err := resource.Spec.Decode(&challenge); err != nil {
		return fmt.Errorf("invalid challenge spec: %v", err)
	}
	if challenge.ID == "" {
		challenge.ID = resource.Metadata.Name
	}
	if challenge.ID == "" {
		challenge.ID = uuid.New().String()
	}
	if challenge.Scope == "" {
		challenge.Scope = types.ChallengeScopeGlobal
	}
	if err := challenge.Validate(); err != nil {
		return err
	}

	existing, err := store.GetChallenge(challenge.ID)
	if err == nil && existing != nil {
		fmt.Fprintf(out, "Challenge already exists: %s (skipping)\n", challenge.ID)
		return nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	challenge.CreatedAt = now
	if err := store.CreateChallenge(&challenge); err != nil {
		return fmt.Errorf("failed to create challenge: %v", err)
	}
	fmt.Fprintf(out, "✓ Challenge created: %s (%d activities)\n", challenge.ID, len(challenge.Activities))
	return nil
}

func applyHabit(store storage.Store, resource *Resource, out io.Writer, now time.Time) error {
	var habit types.Habit
	if err := resource.Spec.Decode(&habit); err != nil {
		return fmt.Errorf("invalid habit spec: %v", err)
	}
	if habit.ID == "" {
		habit.ID = resource.Metadata.Name
	}
	if habit.ID == "" {
		habit.ID = uuid.New().String()
	}
	if habit.UserID == "" || habit.Title == "" {
		return fmt.Errorf("habit %s: userId and title are required", habit.ID)
	}
	if habit.Time != "" {
		normalized, err := schedule.Normalize(habit.Time)
		if err != nil {
			return fmt.Errorf("habit %s: %v", habit.ID, err)
		}
		habit.Time = normalized
	}

	verb := "created"
	existing, err := store.GetHabit(habit.ID)
	switch {
	case err == nil:
		if existing.UserID != habit.UserID {
			return fmt.Errorf("habit %s belongs to another user", habit.ID)
		}
		habit.CreatedAt = existing.CreatedAt
		verb = "updated"
	case errors.Is(err, storage.ErrNotFound):
		habit.CreatedAt = now
	default:
		return err
	}

	if err := store.CreateHabit(&habit); err != nil {
		return fmt.Errorf("failed to store habit: %v", err)
	}
	fmt.Fprintf(out, "✓ Habit %s: %s (%s)\n", verb, habit.ID, habit.Title)
	return nil
}
