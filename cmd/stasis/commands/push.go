package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stasisproject/stasis/pkg/config"
	"github.com/stasisproject/stasis/pkg/stores"
	"github.com/stasisproject/stasis/pkg/transports/ssh"
)

func newPushCommand() *cobra.Command {
	var (
		remoteName string
		fromStore  bool
	)

	cmd := &cobra.Command{
		Use:   "push <capsule>...",
		Short: "Ship capsule files to a remote host over SSH",
		Long: `Push copies capsule files to a remote host via SFTP and verifies each
transfer with a SHA256 checksum. On mismatch the remote copy is removed
and the push fails.

Remotes are declared in the config file; --remote selects one by name.`,
		Example: `  # Ship a capsule file to the remote named "staging"
  stasis push checkout-state.capsule --remote staging

  # Ship a stored capsule by name
  stasis push checkout-state --remote staging --from-store`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			remote, err := findRemote(rt.cfg, remoteName)
			if err != nil {
				return err
			}

			paths := make(map[string]string, len(args))
			if fromStore {
				store, err := rt.openStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()

				dir, err := exportForPush(cmd, store, args)
				if err != nil {
					return err
				}
				defer os.RemoveAll(dir)
				for _, name := range args {
					paths[name+".capsule"] = filepath.Join(dir, name+".capsule")
				}
			} else {
				for _, path := range args {
					paths[filepath.Base(path)] = path
				}
			}

			sshCfg, err := remoteSSHConfig(remote)
			if err != nil {
				return err
			}

			client, err := ssh.NewSSHClient(sshCfg)
			if err != nil {
				return fmt.Errorf("failed to create SSH client: %w", err)
			}
			defer client.Disconnect()

			shipper := ssh.NewShipper(client, remote.Dir, rt.logger.Zerolog())
			results, err := shipper.PushAll(ctx, paths)
			for _, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed %s (%d bytes, sha256 %s)\n",
					res.RemotePath, res.BytesTransferred, res.Checksum)
			}
			if err != nil {
				return fmt.Errorf("push failed: %w", err)
			}

			if fromStore {
				store, storeErr := rt.openStore(ctx)
				if storeErr == nil {
					defer store.Close()
					for _, name := range args {
						if c, err := store.GetCapsuleByName(ctx, name); err == nil {
							if err := store.MarkPushed(ctx, c.ID); err != nil {
								zl := rt.logger.Zerolog()
								zl.Warn().Err(err).Str("capsule", name).Msg("Failed to mark capsule pushed")
							}
						}
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&remoteName, "remote", "r", "", "remote name from the config file")
	cmd.Flags().BoolVar(&fromStore, "from-store", false, "arguments are stored capsule names, not files")
	cmd.MarkFlagRequired("remote")

	return cmd
}

// findRemote resolves a remote by name from the loaded config.
func findRemote(cfg *config.Config, name string) (*config.RemoteSettings, error) {
	for i := range cfg.Remotes {
		if cfg.Remotes[i].Name == name {
			return &cfg.Remotes[i], nil
		}
	}
	return nil, fmt.Errorf("remote %q is not declared in the config", name)
}

// remoteSSHConfig converts remote settings into a transport config.
func remoteSSHConfig(remote *config.RemoteSettings) (*ssh.Config, error) {
	cfg := ssh.DefaultConfig(remote.Host, remote.User)
	if remote.Port != 0 {
		cfg.Port = remote.Port
	}
	if remote.PrivateKeyPath != "" {
		cfg.AuthMethod = ssh.AuthMethodKey
		cfg.PrivateKeyPath = remote.PrivateKeyPath
	}
	if remote.KnownHostsPath != "" {
		cfg.KnownHostsPath = remote.KnownHostsPath
		cfg.StrictHostKeyChecking = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("remote %s: %w", remote.Name, err)
	}
	return cfg, nil
}

// exportForPush writes stored capsules into a temp directory so the
// shipper can checksum and upload them as files.
func exportForPush(cmd *cobra.Command, store *stores.SQLiteStore, names []string) (string, error) {
	dir, err := os.MkdirTemp("", "stasis-push-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	for _, name := range names {
		c, err := store.GetCapsuleByName(cmd.Context(), name)
		if err != nil {
			return "", fmt.Errorf("failed to load capsule %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name+".capsule"), c.Payload, 0o600); err != nil {
			return "", fmt.Errorf("failed to stage capsule %s: %w", name, err)
		}
	}

	return dir, nil
}
