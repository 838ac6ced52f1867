package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/techdesk/internal/client"
	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/scheduling"
)

type technicianStatusWriter interface {
	UpdateTechnicianStatus(ctx context.Context, id string, status domain.TechnicianStatus) (*domain.Technician, error)
}

func newTechnicianCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "technician",
		Aliases: []string{"tech"},
		Short:   "Manage technicians",
	}
	cmd.AddCommand(newTechnicianSetStatusCommand())
	return cmd
}

func newTechnicianSetStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <id> <ACTIVE|INACTIVE|ON_LEAVE>",
		Short: "Change a technician's status and verify the backend stored it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := appFrom(cmd)
			status := domain.TechnicianStatus(strings.ToUpper(strings.TrimSpace(args[1])))
			if !status.Valid() {
				return fmt.Errorf("unknown technician status %q", args[1])
			}
			writer, ok := rt.backend.(technicianStatusWriter)
			if !ok {
				return errors.New("backend does not support technician updates")
			}
			tech, err := writer.UpdateTechnicianStatus(cmd.Context(), args[0], status)
			if errors.Is(err, client.ErrWriteNotApplied) {
				rt.terminal.Notify(scheduling.NoticeWarning, fmt.Sprintf(
					"The backend accepted the change but technician %s is still %s. Check with an administrator before relying on it.",
					tech.ID, tech.Status))
				return err
			}
			if err != nil {
				return err
			}
			rt.terminal.Notify(scheduling.NoticeInfo, fmt.Sprintf("Technician %s (%s) is now %s.", tech.Name, tech.ID, tech.Status))
			return nil
		},
	}
}
