package main

import (
	"context"
	"fmt"

	"coursebackup/internal/config"
	"coursebackup/internal/storage"
	"coursebackup/internal/storage/local"
	s3backend "coursebackup/internal/storage/s3"
	sftpbackend "coursebackup/internal/storage/sftp"
)

func createBackends(ctx context.Context, configs []config.StorageConfig) ([]storage.Backend, error) {
	var backends []storage.Backend
	for _, cfg := range configs {
		var b storage.Backend
		switch cfg.Type {
		case "local":
			path := cfg.Path
			if path == "" {
				path = "./archives"
			}
			b = local.New(path)
		case "s3":
			var err error
			b, err = s3backend.New(ctx, s3backend.Config{
				Bucket:          cfg.Bucket,
				Prefix:          cfg.Prefix,
				Region:          cfg.Region,
				Endpoint:        cfg.Endpoint,
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
				StorageClass:    cfg.StorageClass,
				ForcePathStyle:  cfg.ForcePathStyle,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create S3 backend: %w", err)
			}
		case "sftp":
			var err error
			b, err = sftpbackend.New(sftpbackend.Config{
				Host:                  cfg.Host,
				Port:                  cfg.Port,
				User:                  cfg.User,
				Password:              cfg.Password,
				KeyFile:               cfg.KeyFile,
				RemoteDir:             cfg.RemoteDir,
				KnownHostsFile:        cfg.KnownHostsFile,
				InsecureIgnoreHostKey: cfg.InsecureIgnoreHostKey,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create SFTP backend: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
		}
		b.SetName(config.StorageConfigName(cfg))
		backends = append(backends, b)
	}
	return backends, nil
}

// findBackend creates the single storage backend with the given name.
func findBackend(ctx context.Context, configs []config.StorageConfig, name string) (storage.Backend, error) {
	var matches []config.StorageConfig
	for _, sc := range configs {
		if config.StorageConfigName(sc) == name {
			matches = append(matches, sc)
		}
	}

	switch len(matches) {
	case 0:
		var names []string
		for _, sc := range configs {
			names = append(names, config.StorageConfigName(sc))
		}
		return nil, fmt.Errorf("backend %q not configured (available: %v)", name, names)
	case 1:
		backends, err := createBackends(ctx, matches)
		if err != nil {
			return nil, err
		}
		return backends[0], nil
	default:
		return nil, fmt.Errorf("multiple backends match %q; assign unique names in config", name)
	}
}

func toStorageRetention(r config.RetentionPolicy) storage.RetentionPolicy {
	return storage.RetentionPolicy{
		KeepLast:    r.KeepLast,
		KeepHourly:  r.KeepHourly,
		KeepDaily:   r.KeepDaily,
		KeepWeekly:  r.KeepWeekly,
		KeepMonthly: r.KeepMonthly,
		KeepYearly:  r.KeepYearly,
	}
}
