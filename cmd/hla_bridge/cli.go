package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"text/tabwriter"

	"github.com/OCAP2/hlabridge/internal/config"
	"github.com/OCAP2/hlabridge/internal/database"
	"github.com/OCAP2/hlabridge/internal/mapping"
	"github.com/OCAP2/hlabridge/internal/model"
	"github.com/OCAP2/hlabridge/internal/model/convert"
	"github.com/OCAP2/hlabridge/internal/storage/memory"
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/rpr"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newMappingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mappings [file]",
		Short: "Resolve a mappings file and print the registered mappings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetFederationConfig().MappingsFile
			if len(args) == 1 {
				path = args[0]
			}
			registry := mapping.NewRegistry(Logger)
			if err := config.LoadMappings(path, rpr.NewRegistry(), registry); err != nil {
				return err
			}
			return printMappings(cmd.OutOrStdout(), registry)
		},
	}
}

func printMappings(out io.Writer, registry *mapping.Registry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OBJECT CLASS\tACTOR TYPE\tDIS TYPE\tREMOTE ONLY\tATTRIBUTES")
	for _, m := range registry.ObjectMappings() {
		dis := "*"
		if m.DISType != nil {
			dis = m.DISType.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\n", m.ObjectClassName, m.ActorType, dis, m.RemoteOnly, len(m.Attributes))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "INTERACTION CLASS\tMESSAGE TYPE\tPARAMETERS")
	for _, m := range registry.InteractionMappings() {
		fmt.Fprintf(w, "%s\t%s\t%d\n", m.InteractionClassName, m.MessageType, len(m.Parameters))
	}
	return w.Flush()
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the supported RPR attribute types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printTypes(cmd.OutOrStdout(), rpr.NewRegistry())
		},
	}
}

func printTypes(out io.Writer, types *rpr.Registry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARAMETERS\tLENGTH\tVARIABLE")
	for _, t := range types.All() {
		fmt.Fprintf(w, "%s\t%d\t%d\t%t\n", t.Name(), t.SupportedParameterCount(), t.EncodedLength(), t.IsVariableLength())
	}
	return w.Flush()
}

func newExportCmd() *cobra.Command {
	var outputDir string
	var compress bool
	cmd := &cobra.Command{
		Use:   "export <sqlite file> <session id>...",
		Short: "Write JSON recordings for sessions stored in a SQLite dump",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.GetSqliteDB(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			for _, arg := range args[1:] {
				id, err := strconv.ParseUint(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid session id %q: %w", arg, err)
				}
				path, err := exportSession(db, uint(id), config.MemoryConfig{
					OutputDir:      outputDir,
					CompressOutput: compress,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory for the JSON files")
	cmd.Flags().BoolVar(&compress, "gzip", false, "gzip the JSON files")
	return cmd
}

// exportSession replays one stored session into a memory backend, which
// writes it out as JSON when the session ends.
func exportSession(db *gorm.DB, sessionID uint, cfg config.MemoryConfig) (string, error) {
	var session model.Session
	if err := db.First(&session, sessionID).Error; err != nil {
		return "", fmt.Errorf("session %d: %w", sessionID, err)
	}

	var actors []model.Actor
	if err := db.Where("session_id = ?", sessionID).Order("first_seen").Find(&actors).Error; err != nil {
		return "", fmt.Errorf("session %d actors: %w", sessionID, err)
	}
	var states []model.ActorState
	if err := db.Where("session_id = ?", sessionID).Order("time, id").Find(&states).Error; err != nil {
		return "", fmt.Errorf("session %d states: %w", sessionID, err)
	}
	var interactions []model.InteractionRecord
	if err := db.Where("session_id = ?", sessionID).Order("time, id").Find(&interactions).Error; err != nil {
		return "", fmt.Errorf("session %d interactions: %w", sessionID, err)
	}

	b := memory.New(cfg)
	s := convert.SessionToCore(session)
	if err := b.StartSession(&s); err != nil {
		return "", err
	}

	for _, a := range actors {
		actor := convert.ActorToCore(a)
		if err := b.AddActor(&actor); err != nil {
			return "", err
		}
	}
	for _, st := range states {
		state, err := convert.ActorStateToCore(st)
		if err != nil {
			return "", err
		}
		if err := b.RecordActorState(&state); err != nil {
			slog.Warn("Skipping state of unknown actor", "actor", st.ActorID, "error", err)
		}
	}
	for _, a := range actors {
		if !a.RemovedAt.Valid {
			continue
		}
		if err := b.RemoveActor(&core.ActorRemoval{ActorID: core.ActorID(a.ActorID), Time: a.RemovedAt.Time}); err != nil {
			return "", err
		}
	}
	for _, r := range interactions {
		i, err := convert.InteractionToCore(r)
		if err != nil {
			return "", err
		}
		if err := b.RecordInteraction(&i); err != nil {
			return "", err
		}
	}

	if err := b.EndSession(); err != nil {
		return "", fmt.Errorf("writing session %d: %w", sessionID, err)
	}
	return b.ExportedFilePath(), nil
}
