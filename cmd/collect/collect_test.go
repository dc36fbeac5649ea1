package collect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/awstesting/unit"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/undefinedlabs/go-mpatch"
	"github.com/xuri/excelize/v2"

	awsinternal "awsinventory/internal/aws"
	"awsinventory/internal/aws/adapters"
	"awsinventory/internal/config"
	"awsinventory/internal/inventory"
	"awsinventory/internal/logging"
	"awsinventory/internal/output"
)

func init() {
	logging.Configure(logging.LogConfig{Level: logging.ERROR, Output: io.Discard})
	color.NoColor = true
}

// Helper function to safely unpatch
func safeUnpatch(p *mpatch.Patch) {
	if err := p.Unpatch(); err != nil {
		fmt.Fprintf(os.Stderr, "Error unpatching: %v\n", err)
	}
}

// setupConfig loads the configuration the way the root command does, with
// args applied to a fresh collect command
func setupConfig(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	saved := *config.Config
	t.Cleanup(func() { *config.Config = saved })

	cmd := NewCollectCmd()
	require.NoError(t, cmd.ParseFlags(args))
	require.NoError(t, config.InitConfig(false, cmd))
	require.NoError(t, config.BindFlags(cmd))
	require.NoError(t, config.Load())
	return cmd
}

func TestNewCollectCmd(t *testing.T) {
	cmd := NewCollectCmd()
	assert.Equal(t, "collect", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	flags := []struct {
		name     string
		typ      string
		defValue string
	}{
		{"services", "string", "all"},
		{"regions", "string", ""},
		{"all-regions", "bool", "false"},
		{"dependencies", "bool", "false"},
		{"unit-timeout", "duration", "5m0s"},
		{"role", "string", ""},
		{"formats", "string", "xlsx"},
		{"output", "string", "filesystem"},
		{"output-dir", "string", "output"},
		{"bucket", "string", ""},
		{"bucket-region", "string", ""},
		{"requests-per-second", "float64", "5"},
		{"max-retries", "int", "10"},
	}
	for _, f := range flags {
		t.Run(f.name, func(t *testing.T) {
			flag := cmd.Flags().Lookup(f.name)
			require.NotNil(t, flag)
			assert.Equal(t, f.typ, flag.Value.Type())
			assert.Equal(t, f.defValue, flag.DefValue)
		})
	}
}

func TestResolveOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		check   func(t *testing.T, opts *collectOptions)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, opts *collectOptions) {
				assert.Equal(t, []string{"all"}, opts.services)
				assert.Empty(t, opts.regions)
				assert.Equal(t, []string{FormatXLSX}, opts.formats)
				assert.Equal(t, output.FileSystem, opts.output)
				assert.Equal(t, "output", opts.outputDir)
			},
		},
		{
			name: "explicit services and regions",
			args: []string{"--services", "EC2, S3", "--regions", "us-east-1,eu-west-1", "--formats", "XLSX,json"},
			check: func(t *testing.T, opts *collectOptions) {
				assert.Equal(t, []string{"EC2", "S3"}, opts.services)
				assert.Equal(t, []string{"us-east-1", "eu-west-1"}, opts.regions)
				assert.Equal(t, []string{FormatXLSX, FormatJSON}, opts.formats)
			},
		},
		{
			name: "dependency mode overrides services",
			args: []string{"--dependencies", "--services", "S3"},
			check: func(t *testing.T, opts *collectOptions) {
				assert.True(t, opts.dependencies)
				assert.Equal(t, adapters.DependencyServices, opts.services)
			},
		},
		{
			name:    "invalid format",
			args:    []string{"--formats", "html"},
			wantErr: "invalid report format: html",
		},
		{
			name:    "invalid output",
			args:    []string{"--output", "ftp"},
			wantErr: "unsupported output type",
		},
		{
			name:    "s3 needs bucket",
			args:    []string{"--output", "s3"},
			wantErr: "--bucket is required",
		},
		{
			name:    "s3 needs bucket region",
			args:    []string{"--output", "s3", "--bucket", "archive"},
			wantErr: "--bucket-region is required",
		},
		{
			name: "s3 archive",
			args: []string{"--output", "s3", "--bucket", "archive", "--bucket-region", "eu-west-1"},
			check: func(t *testing.T, opts *collectOptions) {
				assert.Equal(t, output.S3, opts.output)
				assert.Equal(t, "archive", opts.bucket)
				assert.Equal(t, "eu-west-1", opts.bucketRegion)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := setupConfig(t, tt.args...)
			opts, err := resolveOptions(cmd)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func TestUnitTimeoutFlag(t *testing.T) {
	setupConfig(t, "--unit-timeout", "30s", "--role", "Audit")
	assert.Equal(t, 30*time.Second, config.Config.UnitTimeout)
	assert.Equal(t, "Audit", config.Config.Role)
}

func TestResolveRegions(t *testing.T) {
	available := []string{"eu-west-1", "us-east-1", "us-west-2"}
	var discoverErr error
	patch, err := mpatch.PatchMethod(awsinternal.GetAvailableRegions, func(ctx context.Context, p client.ConfigProvider) ([]string, error) {
		if discoverErr != nil {
			return nil, discoverErr
		}
		return available, nil
	})
	require.NoError(t, err)
	defer safeUnpatch(patch)

	ctx := context.Background()

	regions, err := resolveRegions(ctx, unit.Session, nil, false)
	require.NoError(t, err)
	assert.Equal(t, awsinternal.DefaultRegions, regions)

	regions, err = resolveRegions(ctx, unit.Session, []string{"us-west-1"}, true)
	require.NoError(t, err)
	assert.Equal(t, available, regions, "--all-regions ignores explicit regions")

	regions, err = resolveRegions(ctx, unit.Session, []string{"eu-west-1"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"eu-west-1"}, regions)

	_, err = resolveRegions(ctx, unit.Session, []string{"mars-north-1"}, false)
	assert.ErrorContains(t, err, "mars-north-1")

	discoverErr = errors.New("UnauthorizedOperation")
	regions, err = resolveRegions(ctx, unit.Session, []string{"mars-north-1"}, false)
	require.NoError(t, err, "validation is skipped when discovery fails")
	assert.Equal(t, []string{"mars-north-1"}, regions)

	_, err = resolveRegions(ctx, unit.Session, nil, true)
	assert.Error(t, err)
}

func TestReportPath(t *testing.T) {
	completed := time.Date(2024, 5, 17, 9, 30, 15, 0, time.UTC)
	assert.Equal(t, filepath.Join("out", "aws_inventory_20240517_093015.xlsx"), reportPath("out", "inventory", completed, false))
	assert.Equal(t, filepath.Join("out", "dependencies_aws_topology_20240517_093015.xlsx"), reportPath("out", "topology", completed, true))
}

func sampleReport() *inventory.Report {
	return &inventory.Report{
		RunID:       "run-1",
		AccountID:   "123456789012",
		CompletedAt: time.Date(2024, 5, 17, 9, 30, 15, 0, time.UTC),
		Resources: map[string]inventory.Resources{
			"ELB": {{Service: "ELB", Region: "us-east-1", ID: "lb-1", Name: "front"}},
		},
		Summary: map[inventory.UnitOfWork]inventory.UnitSummary{
			{Service: "ELB", Region: "us-east-1"}: {Count: 1, Status: inventory.StatusPopulated},
		},
	}
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	opts := &collectOptions{
		formats:      []string{FormatXLSX, FormatJSON},
		output:       output.FileSystem,
		outputDir:    dir,
		dependencies: true,
	}

	files, err := writeReports(context.Background(), nil, sampleReport(), opts)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "dependencies_aws_inventory_20240517_093015.xlsx"), files[0])
	assert.Equal(t, filepath.Join(dir, "dependencies_aws_topology_20240517_093015.xlsx"), files[1])
	assert.Equal(t, filepath.Join(dir, "2024", "05", "17", "123456789012", "09-30-15+0000.json.gz"), files[2])
	for _, file := range files {
		assert.FileExists(t, file)
	}

	f, err := excelize.OpenFile(files[1])
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"us-east-1_front"}, f.GetSheetList())
}

func TestWriteReportsContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("file"), 0644))

	opts := &collectOptions{
		formats:   []string{FormatXLSX},
		output:    output.FileSystem,
		outputDir: blocked,
	}
	files, err := writeReports(context.Background(), nil, sampleReport(), opts)
	assert.ErrorContains(t, err, "failed to write reports")
	assert.Empty(t, files)
}

func TestRunCollect(t *testing.T) {
	dir := t.TempDir()
	cmd := setupConfig(t, "--services", "EC2,S3", "--regions", "us-east-1,us-west-2", "--output-dir", dir)

	sessionPatch, err := mpatch.PatchMethod(newSession, func() (*session.Session, error) {
		return unit.Session, nil
	})
	require.NoError(t, err)
	defer safeUnpatch(sessionPatch)

	regionsPatch, err := mpatch.PatchMethod(awsinternal.GetAvailableRegions, func(ctx context.Context, p client.ConfigProvider) ([]string, error) {
		return []string{"us-east-1", "us-west-2"}, nil
	})
	require.NoError(t, err)
	defer safeUnpatch(regionsPatch)

	identityPatch, err := mpatch.PatchMethod(awsinternal.CallerIdentity, func(p client.ConfigProvider) (*awsinternal.Identity, error) {
		return &awsinternal.Identity{AccountID: "123456789012"}, nil
	})
	require.NoError(t, err)
	defer safeUnpatch(identityPatch)

	registryPatch, err := mpatch.PatchMethod(adapters.NewRegistry, func(p client.ConfigProvider) (*inventory.Registry, error) {
		reg := inventory.NewRegistry()
		if err := reg.Register("EC2", inventory.AdapterFunc(func(ctx context.Context, region string) (inventory.Resources, error) {
			if region == "us-west-2" {
				return nil, errors.New("AccessDenied: not authorized")
			}
			return inventory.Resources{{ID: "i-1", Name: "web"}}, nil
		})); err != nil {
			return nil, err
		}
		if err := reg.Register("S3", inventory.AdapterFunc(func(ctx context.Context, region string) (inventory.Resources, error) {
			return nil, nil
		})); err != nil {
			return nil, err
		}
		return reg, nil
	})
	require.NoError(t, err)
	defer safeUnpatch(registryPatch)

	opts, err := resolveOptions(cmd)
	require.NoError(t, err)

	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, runCollect(context.Background(), cmd, opts))

	assert.Contains(t, out.String(), "AccessDenied: not authorized")
	assert.Contains(t, out.String(), "Report written to")

	matches, err := filepath.Glob(filepath.Join(dir, "aws_inventory_*.xlsx"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := excelize.OpenFile(matches[0])
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Coverage")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"EC2", "us-west-2", "failed", "0"}, rows[2])
	assert.Equal(t, []string{"S3", "us-east-1", "empty", "0"}, rows[3])

	account, err := f.GetCellValue("Summary", "B6")
	require.NoError(t, err)
	assert.Equal(t, "123456789012", account)
}

func TestRunCollectWritesReportsAfterInterrupt(t *testing.T) {
	dir := t.TempDir()
	cmd := setupConfig(t, "--services", "EC2", "--regions", "us-east-1", "--formats", "json", "--output-dir", dir)

	sessionPatch, err := mpatch.PatchMethod(newSession, func() (*session.Session, error) {
		return unit.Session, nil
	})
	require.NoError(t, err)
	defer safeUnpatch(sessionPatch)

	regionsPatch, err := mpatch.PatchMethod(awsinternal.GetAvailableRegions, func(ctx context.Context, p client.ConfigProvider) ([]string, error) {
		return []string{"us-east-1"}, nil
	})
	require.NoError(t, err)
	defer safeUnpatch(regionsPatch)

	identityPatch, err := mpatch.PatchMethod(awsinternal.CallerIdentity, func(p client.ConfigProvider) (*awsinternal.Identity, error) {
		return &awsinternal.Identity{AccountID: "123456789012"}, nil
	})
	require.NoError(t, err)
	defer safeUnpatch(identityPatch)

	registryPatch, err := mpatch.PatchMethod(adapters.NewRegistry, func(p client.ConfigProvider) (*inventory.Registry, error) {
		reg := inventory.NewRegistry()
		err := reg.Register("EC2", inventory.AdapterFunc(func(ctx context.Context, region string) (inventory.Resources, error) {
			return nil, ctx.Err()
		}))
		return reg, err
	})
	require.NoError(t, err)
	defer safeUnpatch(registryPatch)

	var archiveErr error
	archived := false
	archivePatch, err := mpatch.PatchMethod(archive, func(ctx context.Context, cfg output.Config, report *inventory.Report) (string, error) {
		archived = true
		archiveErr = ctx.Err()
		return filepath.Join(dir, "report.json.gz"), nil
	})
	require.NoError(t, err)
	defer safeUnpatch(archivePatch)

	opts, err := resolveOptions(cmd)
	require.NoError(t, err)

	interrupted, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, runCollect(interrupted, cmd, opts))

	assert.True(t, archived)
	assert.NoError(t, archiveErr, "report writing should not inherit the interrupt")
	assert.Contains(t, out.String(), "Report written to")
}
