package collect

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	awsinternal "awsinventory/internal/aws"
	"awsinventory/internal/aws/adapters"
	"awsinventory/internal/config"
	"awsinventory/internal/inventory"
	"awsinventory/internal/logging"
	"awsinventory/internal/output"
	"awsinventory/internal/output/xlsx"
	"awsinventory/internal/topology"
)

// Report formats
const (
	FormatXLSX = "xlsx"
	FormatJSON = "json"

	timestampLayout  = "20060102_150405"
	dependencyPrefix = "dependencies_"
)

type collectOptions struct {
	services     []string
	regions      []string
	allRegions   bool
	dependencies bool
	formats      []string
	output       output.Type
	outputDir    string
	bucket       string
	bucketRegion string
}

// NewCollectCmd creates the collect command
func NewCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect an inventory of AWS resources",
		Long: `Collect an inventory of AWS resources into a spreadsheet.

Every selected service is collected in every selected region, concurrently.
A service that fails in one region does not affect the others; failures are
listed in the report and on the terminal once the run completes.

When no regions are specified, us-east-1, us-east-2, sa-east-1, us-west-1 and
us-west-2 are collected. Use --all-regions to collect every enabled region.

Examples:
  # Collect every supported service in the default regions
  awsinventory collect

  # Collect EC2 and S3 in two regions
  awsinventory collect --services EC2,S3 --regions us-east-1,eu-west-1

  # Collect the load balancer dependencies and map their topology
  awsinventory collect --dependencies --all-regions

  # Also archive the report as gzipped JSON to S3
  awsinventory collect --formats xlsx,json --output s3 --bucket my-bucket --bucket-region us-west-2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveOptions(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runCollect(ctx, cmd, opts)
		},
	}

	cmd.Flags().String("services", "all", "Comma-separated list of services to collect (default: all supported services)")
	cmd.Flags().String("regions", "", "Comma-separated list of regions to collect")
	cmd.Flags().Bool("all-regions", false, "Collect every region enabled for the account")
	cmd.Flags().Bool("dependencies", false, "Collect only the load balancer dependency services and write a topology workbook")
	cmd.Flags().Duration("unit-timeout", 5*time.Minute, "Time limit for collecting one service in one region (0 disables)")
	cmd.Flags().String("role", "", "Role to assume in the profile's account before collecting")
	cmd.Flags().String("formats", FormatXLSX, "Comma-separated report formats (xlsx, json)")
	cmd.Flags().String("output", "filesystem", "Destination of the json archive (filesystem, s3)")
	cmd.Flags().StringP("output-dir", "o", "output", "Directory for generated files")
	cmd.Flags().String("bucket", "", "S3 bucket name (required when --output=s3)")
	cmd.Flags().String("bucket-region", "", "S3 bucket region (required when --output=s3)")
	cmd.Flags().Float64("requests-per-second", 5, "Request pacing per service and region")
	cmd.Flags().Int("max-retries", config.DefaultMaxRetries, "SDK retries for a single request")

	return cmd
}

// resolveOptions reads and validates the collect settings once flags,
// environment and config file have been merged
func resolveOptions(cmd *cobra.Command) (*collectOptions, error) {
	opts := &collectOptions{
		services:     config.StringList("collect.services"),
		regions:      config.StringList("collect.regions"),
		allRegions:   viper.GetBool("collect.all_regions"),
		formats:      config.StringList("collect.formats"),
		outputDir:    viper.GetString("collect.output_dir"),
		bucket:       viper.GetString("collect.bucket"),
		bucketRegion: viper.GetString("collect.bucket_region"),
	}
	opts.dependencies, _ = cmd.Flags().GetBool("dependencies")

	if opts.dependencies {
		opts.services = adapters.DependencyServices
	}
	if len(opts.services) == 0 {
		opts.services = []string{inventory.AllServices}
	}
	if len(opts.formats) == 0 {
		opts.formats = []string{FormatXLSX}
	}
	for i, format := range opts.formats {
		format = strings.ToLower(format)
		switch format {
		case FormatXLSX, FormatJSON:
			opts.formats[i] = format
		default:
			return nil, fmt.Errorf("invalid report format: %s", format)
		}
	}

	var err error
	opts.output, err = output.ParseType(viper.GetString("collect.output"))
	if err != nil {
		return nil, err
	}
	if opts.output == output.S3 {
		if opts.bucket == "" {
			return nil, fmt.Errorf("--bucket is required when --output=s3")
		}
		if opts.bucketRegion == "" {
			return nil, fmt.Errorf("--bucket-region is required when --output=s3")
		}
	}
	if opts.outputDir == "" {
		opts.outputDir = "output"
	}
	return opts, nil
}

func (o *collectOptions) hasFormat(format string) bool {
	return slices.Contains(o.formats, format)
}

// newSession builds the shared session from the loaded configuration
func newSession() (*session.Session, error) {
	return awsinternal.NewInventorySession(awsinternal.SessionConfig{
		Profile:    config.Config.Profile,
		Role:       config.Config.Role,
		MaxRetries: config.MaxRetries(),
		RateLimit:  config.RateLimit(),
	})
}

// resolveRegions picks the regions to collect. Explicit regions are checked
// against the enabled set when it can be discovered.
func resolveRegions(ctx context.Context, p client.ConfigProvider, requested []string, all bool) ([]string, error) {
	if all {
		regions, err := awsinternal.GetAvailableRegions(ctx, p)
		if err != nil {
			return nil, err
		}
		return regions, nil
	}
	if len(requested) == 0 {
		return awsinternal.DefaultRegions, nil
	}

	available, err := awsinternal.GetAvailableRegions(ctx, p)
	if err != nil {
		logging.Warn("Could not discover enabled regions, skipping region validation", map[string]interface{}{
			"error": err.Error(),
		})
		return requested, nil
	}
	if err := awsinternal.ValidateRegions(requested, available); err != nil {
		return nil, err
	}
	return requested, nil
}

func runCollect(parent context.Context, cmd *cobra.Command, opts *collectOptions) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	sess, err := newSession()
	if err != nil {
		return err
	}

	regions, err := resolveRegions(ctx, sess, opts.regions, opts.allRegions)
	if err != nil {
		return err
	}

	registry, err := adapters.NewRegistry(sess)
	if err != nil {
		return err
	}

	var progress *output.UnitProgress
	scheduler, err := inventory.NewScheduler(registry, &inventory.Options{
		Services:    opts.services,
		Regions:     regions,
		Concurrency: config.Config.MaxWorkers,
		UnitTimeout: config.Config.UnitTimeout,
		Classify:    awsinternal.ClassifyError,
		Progress: inventory.ProgressFunc(func(event inventory.UnitEvent) {
			progress.UnitCompleted(event)
		}),
	})
	if err != nil {
		return err
	}
	progress = output.NewUnitProgress(len(scheduler.Units()), os.Stderr)

	identity, err := awsinternal.CallerIdentity(sess)
	if err != nil {
		logging.Warn("Could not resolve account identity", map[string]interface{}{
			"error": err.Error(),
		})
	}

	report := scheduler.Run(ctx)
	progress.Finish()

	report.Profile = config.Config.Profile
	if identity != nil {
		report.AccountID = identity.AccountID
	}

	// An interrupted run still writes what it collected
	files, err := writeReports(context.WithoutCancel(ctx), sess, report, opts)
	out := cmd.OutOrStdout()
	output.RenderSummary(out, report)
	printFiles(out, files)
	return err
}

// reportPath names a workbook after the report completion time
func reportPath(dir, kind string, completed time.Time, dependencies bool) string {
	name := fmt.Sprintf("aws_%s_%s.xlsx", kind, completed.Format(timestampLayout))
	if dependencies {
		name = dependencyPrefix + name
	}
	return filepath.Join(dir, name)
}

// writeReports renders every requested output and returns the written
// locations. Each output is attempted even when an earlier one fails.
func writeReports(ctx context.Context, sess *session.Session, report *inventory.Report, opts *collectOptions) ([]string, error) {
	var files []string
	var errs []string

	if opts.hasFormat(FormatXLSX) {
		path := reportPath(opts.outputDir, "inventory", report.CompletedAt, opts.dependencies)
		if err := xlsx.Render(path, report); err != nil {
			logging.Error("Failed to write inventory workbook", err, map[string]interface{}{"path": path})
			errs = append(errs, err.Error())
		} else {
			files = append(files, path)
		}
	}

	if opts.dependencies {
		path := reportPath(opts.outputDir, "topology", report.CompletedAt, true)
		if err := topology.Render(path, topology.Build(report)); err != nil {
			logging.Error("Failed to write topology workbook", err, map[string]interface{}{"path": path})
			errs = append(errs, err.Error())
		} else {
			files = append(files, path)
		}
	}

	if opts.hasFormat(FormatJSON) {
		cfg := output.Config{
			Type:      opts.output,
			OutputDir: opts.outputDir,
			S3Bucket:  opts.bucket,
		}
		if opts.output == output.S3 {
			cfg.Session = sess.Copy(aws.NewConfig().WithRegion(opts.bucketRegion))
		}
		location, err := archive(ctx, cfg, report)
		if err != nil {
			logging.Error("Failed to archive report", err, nil)
			errs = append(errs, err.Error())
		} else {
			if opts.output == output.S3 {
				location = "s3://" + opts.bucket + "/" + location
			}
			files = append(files, location)
		}
	}

	if len(errs) > 0 {
		return files, fmt.Errorf("failed to write reports: %s", strings.Join(errs, "; "))
	}
	return files, nil
}

func archive(ctx context.Context, cfg output.Config, report *inventory.Report) (string, error) {
	writer, err := output.NewWriter(cfg)
	if err != nil {
		return "", err
	}
	return writer.Write(ctx, report)
}

func printFiles(w io.Writer, files []string) {
	for _, file := range files {
		fmt.Fprintf(w, "%s %s\n", color.GreenString("Report written to"), file)
	}
}
