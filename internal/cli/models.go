package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"super-mouse-ai/internal/diagnostics"
	"super-mouse-ai/internal/domain"
	"super-mouse-ai/internal/models"
	"super-mouse-ai/internal/sysinfo"
)

type recommendFlags struct {
	cpu          bool
	cores        int
	ramGB        float64
	vramGB       float64
	allLanguages bool
	compression  string
}

func newRecommendCmd(flags *rootFlags) *cobra.Command {
	rf := &recommendFlags{}
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Suggest the largest whisper model this machine can run",
		Long: `Suggest a model from the built-in catalog. Cores and RAM are detected;
VRAM comes from the vram_gb option unless --vram is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}

			sys := sysinfo.Detect(opts.VRAMGB)
			if cmd.Flags().Changed("cores") {
				sys.CPUCoreCount = float64(rf.cores)
			}
			if cmd.Flags().Changed("ram") {
				sys.TotalMemoryGB = rf.ramGB
			}
			if cmd.Flags().Changed("vram") {
				sys.TotalVRAMGB = rf.vramGB
			}

			finder := models.DefaultFinderOptions()
			finder.UsesCPU = rf.cpu
			finder.PreferEnglishOnly = !rf.allLanguages
			switch c := models.Compression(rf.compression); c {
			case models.CompressionAll, models.CompressionLow, models.CompressionNone:
				finder.Compression = c
			default:
				return fmt.Errorf("unknown compression %q (want all, low or none)", rf.compression)
			}

			m, ok := models.FindLargestUsableModel(sys, finder)
			if !ok {
				return fmt.Errorf("no model fits %.0f cores, %.1f GB RAM, %.1f GB VRAM; use the bundled default",
					sys.CPUCoreCount, sys.TotalMemoryGB, sys.TotalVRAMGB)
			}

			downloaded, err := models.Downloaded(opts.ModelsDir)
			if err != nil {
				return err
			}
			printModel(cmd, m, slices.Contains(downloaded, m.RelativePath))
			return nil
		},
	}

	cmd.Flags().BoolVar(&rf.cpu, "cpu", false, "size against system RAM for CPU inference")
	cmd.Flags().IntVar(&rf.cores, "cores", 0, "override the detected core count")
	cmd.Flags().Float64Var(&rf.ramGB, "ram", 0, "override detected RAM in GB")
	cmd.Flags().Float64Var(&rf.vramGB, "vram", 0, "override VRAM in GB")
	cmd.Flags().BoolVar(&rf.allLanguages, "all-languages", false, "include multilingual models")
	cmd.Flags().StringVar(&rf.compression, "compression", string(models.CompressionAll), "allowed quantization: all, low or none")
	return cmd
}

func printModel(cmd *cobra.Command, m domain.WhisperModelInfo, downloaded bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", models.Name(m))
	fmt.Fprintf(out, "  file:       %s\n", m.RelativePath)
	fmt.Fprintf(out, "  size:       %s\n", models.HumanSize(m.ApproxSize))
	fmt.Fprintf(out, "  url:        %s\n", models.DownloadURL(m))
	fmt.Fprintf(out, "  downloaded: %t\n", downloaded)
}

var errDiagnosticsFailed = errors.New("diagnostics reported failures")

func newDoctorCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the settings store, transcript file and models directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.withState(cmd.Context(), true, func(s *session) error {
				report := diagnostics.NewChecker().Run(cmd.Context(), s.sub.Targets())
				for _, item := range report.Items {
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", item.Status, item.Name, item.Message)
					if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
						fmt.Fprintf(cmd.OutOrStdout(), "       %s\n", item.Hint)
					}
				}
				if report.HasFailures {
					return errDiagnosticsFailed
				}
				return nil
			})
		},
	}
}
