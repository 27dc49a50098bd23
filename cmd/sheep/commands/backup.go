package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/clawdbot/sheep/pkg/blob"
	"github.com/clawdbot/sheep/pkg/cli"
	"github.com/clawdbot/sheep/pkg/kv"
	"github.com/clawdbot/sheep/pkg/memstore"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export the agent store to a snapshot archive",
	Long: `Export every entry of the agent's store into a msgpack snapshot.

The destination is the local backup directory by default, or an
S3-compatible bucket with --to s3://bucket/prefix. S3 credentials come
from the usual AWS_* environment variables; AWS_ENDPOINT_URL selects a
compatible endpoint (MinIO, R2).`,
	Example: `  sheep backup
  sheep backup --to s3://my-bucket/sheep`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, _ := cmd.Flags().GetString("to")
		agentID := resolveAgentID()

		fs, err := destStore(dest)
		if err != nil {
			return err
		}
		db, err := openKV(agentID)
		if err != nil {
			return err
		}
		defer db.Close()

		name := fmt.Sprintf("%s-%s.snapshot", agentID, time.Now().UTC().Format("20060102T150405"))
		n, err := blob.Snapshot(cmd.Context(), db, memstore.AgentPrefix(agentID), fs, name)
		if err != nil {
			return err
		}
		return output(map[string]any{"archive": name, "entries": n})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Import a snapshot archive",
	Long: `Replace the agent's store contents with a snapshot archive.

The archive is read from the local backup directory by default, or from
an S3-compatible bucket with --from s3://bucket/prefix. Existing data
for the archived agent is deleted before import.`,
	Example: `  sheep restore default-20260825T120000.snapshot
  sheep restore default-20260825T120000.snapshot --from s3://my-bucket/sheep`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, _ := cmd.Flags().GetString("from")
		agentID := resolveAgentID()

		fs, err := destStore(src)
		if err != nil {
			return err
		}
		db, err := openKV(agentID)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := blob.Restore(cmd.Context(), fs, args[0], db)
		if err != nil {
			return err
		}
		return output(map[string]any{"archive": args[0], "entries": n})
	},
}

// openKV opens the raw badger store for an agent, without the memstore
// layer. Snapshots operate below entity semantics.
func openKV(agentID string) (kv.Store, error) {
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return nil, err
	}
	return kv.NewBadger(kv.BadgerOptions{Dir: paths.AgentDir(agentID)})
}

// destStore resolves a backup location: empty means the local backup
// directory, s3://bucket[/prefix] means an S3-compatible bucket.
func destStore(dest string) (blob.FileStore, error) {
	if dest == "" {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, err
		}
		return blob.NewLocal(paths.BackupDir())
	}
	if rest, ok := strings.CutPrefix(dest, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("bad S3 destination %q", dest)
		}
		return blob.NewS3(newS3Client(), bucket, prefix), nil
	}
	return blob.NewLocal(dest)
}

// newS3Client builds an S3 client from the AWS_* environment. The
// credential chain is deliberately simple: static env credentials only.
func newS3Client() *s3.Client {
	opts := s3.Options{
		Region: os.Getenv("AWS_REGION"),
		Credentials: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			}, nil
		}),
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if ep := os.Getenv("AWS_ENDPOINT_URL"); ep != "" {
		opts.BaseEndpoint = aws.String(ep)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func init() {
	backupCmd.Flags().String("to", "", "destination (local dir or s3://bucket/prefix)")
	restoreCmd.Flags().String("from", "", "source (local dir or s3://bucket/prefix)")

	rootCmd.AddCommand(backupCmd, restoreCmd)
}
