package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gosheets/internal/config"
	errwrap "github.com/3leaps/gosheets/internal/errors"
	"github.com/3leaps/gosheets/internal/observability"
	"github.com/3leaps/gosheets/pkg/kvstore"
	"github.com/3leaps/gosheets/pkg/provider/batch"
)

var (
	doctorProvider string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the system and suggest fixes for common issues.

Examples:
  gosheets doctor                   # Full environment check
  gosheets doctor --provider batch  # AWS Batch credential checks`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorProvider, "provider", "", "Run provider-specific checks (batch)")
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	log := observability.CLILogger
	bannerName := config.AppName + " doctor"
	log.Info("=== " + bannerName + " ===")
	log.Info("")
	log.Info("Running diagnostic checks...")
	log.Info("")

	switch doctorProvider {
	case "", "batch":
	default:
		return exitError(foundry.ExitInvalidArgument, "Unknown provider",
			fmt.Errorf("unsupported provider %q (supported: batch)", doctorProvider))
	}

	allChecks := true
	checkNum := 1
	totalChecks := 7
	if doctorProvider == "batch" {
		totalChecks = 10
	}

	// Check 1: Go version
	goVersion := runtime.Version()
	if goVersion >= "go1.23" {
		log.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
		allChecks = false
	}
	checkNum++

	// Check 2: Crucible access
	version := crucible.GetVersion()
	if version.Crucible == "" {
		log.Error(fmt.Sprintf("[%d/%d] Checking Crucible access... ❌ Cannot access Crucible", checkNum, totalChecks))
		return exitError(foundry.ExitExternalServiceUnavailable, "Cannot access Crucible",
			errwrap.NewExternalServiceError("Crucible service unavailable"))
	}
	log.Info(fmt.Sprintf("[%d/%d] Checking Crucible access... ✅ v%s", checkNum, totalChecks, version.Crucible),
		zap.String("crucible_version", version.Crucible))
	checkNum++

	// Check 3: Gofulmen access
	if version.Gofulmen != "" {
		log.Info(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ✅ v%s", checkNum, totalChecks, version.Gofulmen),
			zap.String("gofulmen_version", version.Gofulmen))
	} else {
		log.Error(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ❌ Cannot access Gofulmen", checkNum, totalChecks))
		allChecks = false
	}
	checkNum++

	// Check 4: Config directory and file
	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking config directory... ❌ Cannot find config directory", checkNum, totalChecks),
			zap.Error(err))
		return exitError(foundry.ExitFileNotFound, "Cannot find config directory",
			errwrap.WrapInternal(cmd.Context(), err, "Cannot find config directory"))
	}
	configDir = filepath.Join(configDir, config.AppName)
	if ok := checkConfigFile(checkNum, totalChecks, configDir); !ok {
		allChecks = false
	}
	checkNum++

	// Check 5: Data directory
	dataDir := gfconfig.GetAppDataDir(config.AppName)
	if dataDir != "" {
		log.Info(fmt.Sprintf("[%d/%d] Checking data directory... ✅ %s", checkNum, totalChecks, dataDir),
			zap.String("data_dir", dataDir))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking data directory... ⚠️  Cannot resolve data directory", checkNum, totalChecks))
		allChecks = false
	}
	checkNum++

	// Check 6: Key-value encoding
	encoding := kvstore.DefaultEncoding
	if appConfig != nil {
		encoding = appConfig.DBM.Encoding
	}
	if dec, err := kvstore.NewDecoder(encoding); err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking dbm encoding... ❌ %s", checkNum, totalChecks, err),
			zap.String("encoding", encoding))
		allChecks = false
	} else {
		log.Info(fmt.Sprintf("[%d/%d] Checking dbm encoding... ✅ %s", checkNum, totalChecks, dec.Name()),
			zap.String("encoding", dec.Name()))
	}
	checkNum++

	// Check 7: Environment
	log.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))
	checkNum++

	if doctorProvider == "batch" {
		cfg := batch.Config{}
		if appConfig != nil {
			cfg = batchConfig(appConfig)
		}
		if !runBatchChecks(cmd.Context(), cfg, checkNum, totalChecks) {
			allChecks = false
		}
	}

	log.Info("")
	if allChecks {
		log.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", config.AppName))
	} else {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	log.Info("")
	log.Info("=== End Diagnostics ===")
	return nil
}

// checkConfigFile reports the config file in dir, validating it when present.
func checkConfigFile(checkNum, totalChecks int, dir string) bool {
	log := observability.CLILogger

	path := cfgFile
	if path == "" {
		for _, name := range []string{"config.yaml", "config.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		log.Info(fmt.Sprintf("[%d/%d] Checking config file... ✅ none (defaults) in %s", checkNum, totalChecks, dir),
			zap.String("config_dir", dir))
		return true
	}

	if err := config.ValidateFile(path); err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking config file... ❌ %s", checkNum, totalChecks, path),
			zap.Error(err))
		return false
	}
	log.Info(fmt.Sprintf("[%d/%d] Checking config file... ✅ %s", checkNum, totalChecks, path),
		zap.String("config_file", path))
	return true
}

// runBatchChecks runs AWS Batch diagnostic checks.
func runBatchChecks(ctx context.Context, cfg batch.Config, checkNum, totalChecks int) bool {
	log := observability.CLILogger
	log.Info("")
	log.Info("AWS Batch Provider Checks:")

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot load AWS config", checkNum, totalChecks),
			zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot retrieve credentials", checkNum, totalChecks),
			zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	log.Info(fmt.Sprintf("[%d/%d] Checking AWS credentials... ✅ Found credentials", checkNum, totalChecks),
		zap.String("access_key", maskAccessKey(creds.AccessKeyID)),
		zap.String("source", creds.Source))
	checkNum++

	source := creds.Source
	if source == "" {
		source = "unknown"
	}
	log.Info(fmt.Sprintf("[%d/%d] Checking credential source... ✅ %s", checkNum, totalChecks, source),
		zap.String("credential_source", source))
	checkNum++

	region := awsCfg.Region
	if region == "" {
		log.Warn(fmt.Sprintf("[%d/%d] Checking region... ⚠️  none configured (using %s)", checkNum, totalChecks, batch.DefaultAWSRegion))
		return true
	}
	log.Info(fmt.Sprintf("[%d/%d] Checking region... ✅ %s", checkNum, totalChecks, region),
		zap.String("region", region))
	return true
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// printAWSCredentialsHelp prints help for configuring AWS credentials.
func printAWSCredentialsHelp() {
	log := observability.CLILogger
	log.Info("")
	log.Info("To configure AWS credentials:")
	log.Info("  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables, or")
	log.Info("  2. Run 'aws configure' to set up a profile, or")
	log.Info("  3. Use IAM role when running on AWS infrastructure")
	log.Info("")
	log.Info("For local emulators (moto, LocalStack), also set:")
	log.Info("  - GOSHEETS_ENDPOINT or use --endpoint flag")
	log.Info("")
}
