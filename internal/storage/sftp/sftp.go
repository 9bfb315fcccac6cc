package sftp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"coursebackup/internal/storage"
)

// Ensure SFTPBackend implements storage.Backend at compile time.
var _ storage.Backend = (*SFTPBackend)(nil)

// Config holds the connection details of an SFTP destination.
type Config struct {
	Host      string
	Port      int // defaults to 22
	User      string
	Password  string
	KeyFile   string // private key, used instead of or in addition to Password
	RemoteDir string // defaults to "/"
	// KnownHostsFile verifies the server key. When empty the host key is not
	// checked unless InsecureIgnoreHostKey is false, in which case New fails.
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration // dial timeout, defaults to 20s
}

// SFTPBackend stores archives under <RemoteDir>/<set>/ on an SFTP server.
// Every operation opens its own connection.
type SFTPBackend struct {
	storage.Named
	addr      string
	remoteDir string
	sshConfig *ssh.ClientConfig
}

// New validates cfg and prepares the ssh client configuration. It does not
// connect.
func New(cfg Config) (*SFTPBackend, error) {
	if cfg.Host == "" || cfg.User == "" {
		return nil, fmt.Errorf("sftp: host and user are required")
	}
	if cfg.Password == "" && cfg.KeyFile == "" {
		return nil, fmt.Errorf("sftp: password or key file is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		key, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("sftp: failed to read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("sftp: failed to parse key file: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	var hostKey ssh.HostKeyCallback
	switch {
	case cfg.KnownHostsFile != "":
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("sftp: failed to load known hosts: %w", err)
		}
		hostKey = cb
	case cfg.InsecureIgnoreHostKey:
		hostKey = ssh.InsecureIgnoreHostKey()
	default:
		return nil, fmt.Errorf("sftp: knownHostsFile is required unless insecureIgnoreHostKey is set")
	}

	return &SFTPBackend{
		addr:      fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		remoteDir: cfg.RemoteDir,
		sshConfig: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         cfg.Timeout,
		},
	}, nil
}

func (b *SFTPBackend) Type() string {
	return "sftp"
}

func (b *SFTPBackend) Name() string {
	return b.NameOr(b.Type())
}

// session holds one ssh connection and the sftp client running over it.
type session struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

func (s *session) Close() error {
	s.sftp.Close()
	return s.ssh.Close()
}

// connect dials the server, giving up when ctx is done.
func (b *SFTPBackend) connect(ctx context.Context) (*session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sftp: dial canceled: %w", err)
	}

	type dialRes struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialRes, 1)
	go func() {
		c, err := ssh.Dial("tcp", b.addr, b.sshConfig)
		ch <- dialRes{client: c, err: err}
	}()

	var sshClient *ssh.Client
	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.client != nil {
				r.client.Close()
			}
		}()
		return nil, fmt.Errorf("sftp: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("sftp: dial %s: %w", b.addr, r.err)
		}
		sshClient = r.client
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("sftp: new client: %w", err)
	}
	return &session{ssh: sshClient, sftp: sftpClient}, nil
}

func (b *SFTPBackend) setDir(set string) string {
	return path.Join(b.remoteDir, set)
}

// Upload writes the archive to <RemoteDir>/<set>/<fileName> through a .part
// file that is renamed once complete.
func (b *SFTPBackend) Upload(ctx context.Context, set string, fileName string, data io.Reader, size int64) (*storage.BackupMetadata, error) {
	s, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	dir := b.setDir(set)
	if err := s.sftp.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("sftp: mkdir %s: %w", dir, err)
	}

	remotePath := path.Join(dir, fileName)
	partial := remotePath + ".part"
	dst, err := s.sftp.Create(partial)
	if err != nil {
		return nil, fmt.Errorf("sftp: create remote file: %w", err)
	}
	written, err := io.Copy(dst, data)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.sftp.Remove(partial)
		return nil, fmt.Errorf("sftp: upload copy: %w", err)
	}

	// Plain SFTP rename refuses to overwrite.
	s.sftp.Remove(remotePath)
	if err := s.sftp.Rename(partial, remotePath); err != nil {
		s.sftp.Remove(partial)
		return nil, fmt.Errorf("sftp: rename %s: %w", partial, err)
	}

	return &storage.BackupMetadata{
		Key:       remotePath,
		Set:       set,
		FileName:  fileName,
		Size:      written,
		CreatedAt: time.Now(),
	}, nil
}

// remoteFile closes the connection together with the file.
type remoteFile struct {
	*sftp.File
	session *session
}

func (f *remoteFile) Close() error {
	err := f.File.Close()
	f.session.Close()
	return err
}

// Download opens a remote archive. Caller must close the reader, which also
// closes the connection.
func (b *SFTPBackend) Download(ctx context.Context, key string) (io.ReadCloser, *storage.BackupMetadata, error) {
	s, err := b.connect(ctx)
	if err != nil {
		return nil, nil, err
	}

	info, err := s.sftp.Stat(key)
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("sftp: archive not found: %w", err)
	}
	f, err := s.sftp.Open(key)
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("sftp: open %s: %w", key, err)
	}

	meta := &storage.BackupMetadata{
		Key:       key,
		Set:       path.Base(path.Dir(key)),
		FileName:  path.Base(key),
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}
	return &remoteFile{File: f, session: s}, meta, nil
}

// List returns the archives of a set, newest-first.
func (b *SFTPBackend) List(ctx context.Context, set string) ([]storage.BackupMetadata, error) {
	s, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	dir := b.setDir(set)
	entries, err := s.sftp.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("sftp: list %s: %w", dir, err)
	}

	return archivesFrom(dir, set, entries), nil
}

func archivesFrom(dir, set string, entries []os.FileInfo) []storage.BackupMetadata {
	var backups []storage.BackupMetadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), storage.ArchiveExt) {
			continue
		}
		created := e.ModTime()
		if t, ok := storage.ParseBackupTime(e.Name()); ok {
			created = t
		}
		backups = append(backups, storage.BackupMetadata{
			Key:       path.Join(dir, e.Name()),
			Set:       set,
			FileName:  e.Name(),
			Size:      e.Size(),
			CreatedAt: created,
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups
}

// Delete removes a remote archive by key.
func (b *SFTPBackend) Delete(ctx context.Context, key string) error {
	s, err := b.connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.sftp.Remove(key); err != nil {
		return fmt.Errorf("sftp: delete %s: %w", key, err)
	}
	return nil
}
