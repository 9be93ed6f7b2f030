package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Klingon-tech/klingwallet/internal/persist"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/moby/sys/atomicwriter"
)

// KeysExt is the extension of keystore files.
const KeysExt = ".keys"

const keystoreVersion = 1

// Keystore errors.
var (
	ErrWalletExists   = errors.New("wallet already exists")
	ErrWalletNotFound = errors.New("wallet not found")
)

// keystoreFile is the on-disk JSON format of a wallet's key material. The
// descriptors, which may hold private keys, are sealed with Encrypt.
type keystoreFile struct {
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Network     string    `json:"network"`
	Descriptors []byte    `json:"descriptors"`
}

// Keystore keeps one encrypted descriptor file per wallet.
type Keystore struct {
	path string
}

// NewKeystore returns a keystore in dir, creating it if needed.
func NewKeystore(dir string) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: dir}, nil
}

func (ks *Keystore) keysPath(name string) string {
	return filepath.Join(ks.path, name+KeysExt)
}

// Exists reports whether a wallet file exists.
func (ks *Keystore) Exists(name string) bool {
	_, err := os.Stat(ks.keysPath(name))
	return err == nil
}

// Create writes a new keystore holding descs.
func (ks *Keystore) Create(name, network string, descs map[types.Keychain]string, password []byte, params EncryptionParams) error {
	if err := persist.ValidateName(name); err != nil {
		return err
	}
	if ks.Exists(name) {
		return fmt.Errorf("%w: %q", ErrWalletExists, name)
	}
	kf := &keystoreFile{
		Version:   keystoreVersion,
		CreatedAt: time.Now().UTC(),
		Network:   network,
	}
	if err := kf.seal(descs, password, params); err != nil {
		return err
	}
	return ks.writeFile(name, kf)
}

// Load decrypts the descriptors of a wallet.
func (ks *Keystore) Load(name string, password []byte) (map[types.Keychain]string, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return nil, err
	}
	return kf.open(password)
}

// Network returns the network a wallet was created for.
func (ks *Keystore) Network(name string) (string, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return "", err
	}
	return kf.Network, nil
}

// AddDescriptor stores desc for keychain k. An existing entry for k is
// only replaced by the same descriptor.
func (ks *Keystore) AddDescriptor(name string, password []byte, k types.Keychain, desc string, params EncryptionParams) error {
	kf, err := ks.readFile(name)
	if err != nil {
		return err
	}
	descs, err := kf.open(password)
	if err != nil {
		return err
	}
	if cur, ok := descs[k]; ok {
		if cur == desc {
			return nil
		}
		return fmt.Errorf("keychain %s already has a descriptor", k)
	}
	descs[k] = desc
	if err := kf.seal(descs, password, params); err != nil {
		return err
	}
	return ks.writeFile(name, kf)
}

// List returns the wallet names in the keystore, sorted.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), KeysExt); ok && !e.IsDir() {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Delete removes a wallet's keystore file.
func (ks *Keystore) Delete(name string) error {
	err := os.Remove(ks.keysPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %q", ErrWalletNotFound, name)
	}
	return err
}

func (kf *keystoreFile) seal(descs map[types.Keychain]string, password []byte, params EncryptionParams) error {
	plain := make(map[string]string, len(descs))
	for k, d := range descs {
		plain[k.String()] = d
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return fmt.Errorf("marshal descriptors: %w", err)
	}
	defer zero(data)
	sealed, err := Encrypt(data, password, params)
	if err != nil {
		return fmt.Errorf("encrypt descriptors: %w", err)
	}
	kf.Descriptors = sealed
	return nil
}

func (kf *keystoreFile) open(password []byte) (map[types.Keychain]string, error) {
	data, err := Decrypt(kf.Descriptors, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet: %w", err)
	}
	defer zero(data)
	var plain map[string]string
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("parse descriptors: %w", err)
	}
	descs := make(map[types.Keychain]string, len(plain))
	for s, d := range plain {
		k, err := types.ParseKeychain(s)
		if err != nil {
			return nil, err
		}
		descs[k] = d
	}
	return descs, nil
}

func (ks *Keystore) writeFile(name string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	if err := atomicwriter.WriteFile(ks.keysPath(name), data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(name string) (*keystoreFile, error) {
	data, err := os.ReadFile(ks.keysPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrWalletNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported wallet version: %d", kf.Version)
	}
	return &kf, nil
}
