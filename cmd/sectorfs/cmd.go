package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/aligator/sectorfs"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// app holds what every command needs: the host filesystem and the resolved global flags.
type app struct {
	host afero.Fs

	configPath string
	image      string
	geometry   string
	quiet      bool
	verbose    bool

	config Config
}

func newCmd(host afero.Fs) *cobra.Command {
	a := &app{host: host}

	cmd := &cobra.Command{
		Use:               "sectorfs",
		Short:             "Manage files inside of a single file disk image",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := readConfig(a.host, a.configPath)
			if err != nil {
				return err
			}
			a.config = config

			// Flags win over the config file.
			if !cmd.Flags().Changed("image") && config.Image != "" {
				a.image = config.Image
			}
			if !cmd.Flags().Changed("geometry") && config.Geometry != "" {
				a.geometry = config.Geometry
			}

			return setupLogging(a.quiet, a.verbose)
		},
	}

	cmd.AddCommand(formatCmd(a))
	cmd.AddCommand(putCmd(a))
	cmd.AddCommand(getCmd(a))
	cmd.AddCommand(lsCmd(a))
	cmd.AddCommand(rmCmd(a))
	cmd.AddCommand(dumpCmd(a))
	cmd.AddCommand(checkCmd(a))
	cmd.AddCommand(shellCmd(a))

	cmd.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath(), "Path of the config file")
	cmd.PersistentFlags().StringVarP(&a.image, "image", "i", defaultImage, "Disk image to work on")
	cmd.PersistentFlags().StringVar(&a.geometry, "geometry", "a", "Geometry version used by format, a or b")
	cmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Quiet execution")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose execution")

	return cmd
}

// withImage opens the image for the duration of fn.
func (a *app) withImage(fn func(image *sectorfs.Fs) error) error {
	image, err := sectorfs.Open(a.host, a.image)
	if err != nil {
		return err
	}

	err = fn(image)
	closeErr := image.Close()
	if err != nil {
		return err
	}
	return closeErr
}

func formatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "format",
		Short: "Create a new empty image, replacing the old one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			geo, err := sectorfs.GeometryByName(a.geometry)
			if err != nil {
				return err
			}

			protected := append(append([]string{}, sectorfs.DefaultProtected...), a.config.Protected...)
			err = sectorfs.Format(a.host, a.image, sectorfs.FormatOptions{
				Geometry:  geo,
				Protected: protected,
				Logger:    log.StandardLogger(),
			})
			if err != nil {
				return err
			}

			log.Infof("Formatted %s: %s", a.image, geo)
			return nil
		},
	}
}

func putCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <source> [name]",
		Short: "Copy a file from the host into the image",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}

			return a.withImage(func(image *sectorfs.Fs) error {
				info, err := image.CopyIn(args[0], name)
				if err != nil {
					return err
				}
				log.Infof("Copied %s into %s (%d bytes at sector %d)", info.Name(), a.image, info.Size(), info.Entry.FirstSector)
				return nil
			})
		},
	}
}

func getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name> [target]",
		Short: "Copy a file from the image to the host",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			if len(args) == 2 {
				target = args[1]
			}

			return a.withImage(func(image *sectorfs.Fs) error {
				if err := image.CopyOut(args[0], target); err != nil {
					return err
				}
				log.Infof("Copied %s to %s", args[0], target)
				return nil
			})
		},
	}
}

func lsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List the files of the image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withImage(func(image *sectorfs.Fs) error {
				infos, err := image.List()
				if err != nil {
					return err
				}
				return printList(cmd.OutOrStdout(), infos)
			})
		},
	}
}

func printList(w io.Writer, infos []sectorfs.FileInfo) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(w, "No files.")
		return err
	}

	if _, err := fmt.Fprintf(w, "%-5s %-17s %-10s %-12s %s\n", "Slot", "Name", "Attributes", "First sector", "Size"); err != nil {
		return err
	}
	for _, info := range infos {
		_, err := fmt.Fprintf(w, "%-5d %-17s %-10d %-12d %d\n",
			info.Slot, info.Name(), info.Entry.Attributes, info.Entry.FirstSector, info.Size())
		if err != nil {
			return err
		}
	}
	return nil
}

func rmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a file from the image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withImage(func(image *sectorfs.Fs) error {
				if err := image.Remove(args[0]); err != nil {
					return err
				}
				log.Infof("Removed %s", args[0])
				return nil
			})
		},
	}
}

func dumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Show boot record, directory and bitmap of the image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withImage(func(image *sectorfs.Fs) error {
				if err := image.Dump(cmd.OutOrStdout()); err != nil {
					return err
				}

				usage, err := image.Usage()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d sectors free, %d of %d directory entries free\n",
					usage.FreeSectors, usage.DataSectors, usage.FreeSlots, usage.Slots)
				return err
			})
		},
	}
}

var errInconsistent = errors.New("image is inconsistent")

func printReport(w io.Writer, report sectorfs.CheckReport) error {
	for _, problem := range report.Problems {
		if _, err := fmt.Fprintln(w, problem); err != nil {
			return err
		}
	}

	if len(report.Leaked) > 0 {
		_, err := fmt.Fprintf(w, "%d allocated sectors belong to no file: %v\n", len(report.Leaked), report.Leaked)
		if err != nil {
			return err
		}
	}

	if report.OK() {
		_, err := fmt.Fprintf(w, "%d files, no problems found\n", report.ValidEntries)
		return err
	}
	return nil
}

func checkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that boot record, directory and bitmap agree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withImage(func(image *sectorfs.Fs) error {
				report, err := image.Check()
				if err != nil {
					return err
				}

				if err := printReport(cmd.OutOrStdout(), report); err != nil {
					return err
				}

				if !report.OK() {
					return errInconsistent
				}
				return nil
			})
		},
	}
}
