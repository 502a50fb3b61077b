package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sessionsrender "github.com/bnema/collab-core/internal/adapters/render/sessions"
	"github.com/bnema/collab-core/internal/application"
	"github.com/bnema/collab-core/internal/domain"
	"github.com/spf13/cobra"
)

func newSimulateCmd(app *app) *cobra.Command {
	var save, asJSON bool

	cmd := &cobra.Command{
		Use:   "simulate <script.toml>",
		Short: "Replay a scripted multi-editor session against a live registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, app, args[0], save, asJSON)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Persist the materialized content back to the document store")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

type simulationReport struct {
	Document          string
	Content           string
	Version           int
	Joins             int
	Leaves            int
	CursorUpdates     int
	OperationsApplied int
	FullSyncs         int
	Participants      []application.ParticipantView
}

func runSimulate(cmd *cobra.Command, app *app, scriptPath string, save, asJSON bool) error {
	script, err := loadScript(scriptPath)
	if err != nil {
		return err
	}

	documentID := domain.DocumentID(script.Document)
	initial, err := initialContent(cmd.Context(), app, documentID, script)
	if err != nil {
		return err
	}

	registry := app.newRegistry()
	defer registry.Shutdown()

	var report simulationReport
	replay := func(_ context.Context) error {
		r, err := runSimulationSteps(registry, documentID, initial, script.Steps)
		report = r
		return err
	}

	if asJSON {
		err = replay(cmd.Context())
	} else {
		err = runReplaySpinner(cmd.Context(), cmd.ErrOrStderr(), replay)
	}
	if err != nil {
		return err
	}

	report.Document = script.Document
	report.Content = initial
	if content, err := registry.GetContent(documentID); err == nil {
		report.Content = content.Content
		report.Version = content.Version
	}
	if state, err := registry.GetState(documentID, -1); err == nil {
		report.Participants = state.Participants
	}

	if save {
		doc := domain.StoredDocument{
			ID:        documentID,
			Content:   report.Content,
			Version:   report.Version,
			UpdatedAt: app.now(),
		}
		if err := app.store.Save(cmd.Context(), doc); err != nil {
			return fmt.Errorf("save document %s: %w", documentID, err)
		}
	}

	if asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	return writeSimulationOutput(cmd, app, registry, report, save)
}

func initialContent(ctx context.Context, app *app, documentID domain.DocumentID, script simulationScript) (string, error) {
	if script.Content != nil {
		return *script.Content, nil
	}

	stored, err := app.store.Load(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("load document %s: %w", documentID, err)
	}

	return stored.Content, nil
}

func runSimulationSteps(registry *application.Registry, documentID domain.DocumentID, initial string, steps []simulationStep) (simulationReport, error) {
	var report simulationReport

	for i, step := range steps {
		userID := domain.UserID(step.User)

		switch step.Action {
		case actionJoin:
			name := step.Name
			if name == "" {
				name = step.User
			}
			registry.Join(application.JoinCommand{
				DocumentID:     documentID,
				UserID:         userID,
				Name:           name,
				InitialContent: initial,
			})
			report.Joins++

		case actionLeave:
			registry.Leave(documentID, userID)
			report.Leaves++

		case actionCursor:
			cmd := application.UpdateCursorCommand{
				DocumentID: documentID,
				UserID:     userID,
				Position:   step.Position,
			}
			if step.Selection != nil {
				cmd.Selection = &domain.Selection{Start: step.Selection.Start, End: step.Selection.End}
			}
			if !registry.UpdateCursor(cmd) {
				return report, fmt.Errorf("step %d (cursor): user %q has not joined %s", i+1, step.User, documentID)
			}
			report.CursorUpdates++

		case actionInsert, actionDelete, actionReplace:
			_, err := registry.ApplyOperation(application.ApplyOperationCommand{
				DocumentID: documentID,
				UserID:     userID,
				Type:       domain.OperationType(step.Action),
				Position:   step.Position,
				Content:    step.Content,
				Length:     step.Length,
			})
			if err != nil {
				return report, fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
			}
			report.OperationsApplied++

		case actionSync:
			if _, err := registry.SyncContent(application.SyncContentCommand{
				DocumentID: documentID,
				UserID:     userID,
				Content:    step.Content,
			}); err != nil {
				return report, fmt.Errorf("step %d (sync): %w", i+1, err)
			}
			report.FullSyncs++
		}
	}

	return report, nil
}

func writeSimulationOutput(cmd *cobra.Command, app *app, registry *application.Registry, report simulationReport, saved bool) error {
	out := cmd.OutOrStdout()

	if _, err := fmt.Fprintf(out, "document: %s\nversion: %d\ncontent (%d bytes):\n%s\n\n",
		report.Document, report.Version, len(report.Content), report.Content); err != nil {
		return err
	}

	views := make([]sessionsrender.SessionView, 0, 1)
	for _, info := range registry.ListActiveSessions() {
		view := sessionsrender.SessionView{Info: info}
		if string(info.DocumentID) == report.Document {
			view.Participants = report.Participants
		}
		views = append(views, view)
	}

	rendered, err := app.renderSessions(views, sessionsrender.RenderOptions{Now: app.now()})
	if err != nil {
		return fmt.Errorf("render sessions: %w", err)
	}
	if _, err := fmt.Fprintln(out, rendered); err != nil {
		return err
	}

	if saved {
		if _, err := fmt.Fprintf(out, "saved %s at version %d\n", report.Document, report.Version); err != nil {
			return err
		}
	}

	return nil
}
