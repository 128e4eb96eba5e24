package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/etnz/apt-fetch/apt"
	"github.com/etnz/apt-fetch/deb"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"
)

// Config is a business object holding named repository profiles.
type Config struct {
	// Repositories maps a profile name to its repository settings.
	Repositories []RepositoryProfile
}

// RepositoryProfile describes one downloadable repository.
type RepositoryProfile struct {
	Name          string
	Repository    string
	Key           string
	Architectures []string
}

func main() {
	fs := flag.NewFlagSet("apt-fetch", flag.ExitOnError)
	repoSpec := fs.String("repo", "", "Repository specification line (\"deb <uri> <dist> <component>...\")")
	keyRef := fs.String("key", "", "Repository public key: file path or http(s) URL (optional)")
	archList := fs.String("arch", "", "Comma-separated architecture list (default \"amd64\")")
	dest := fs.String("dest", ".", "Destination directory for downloaded packages")
	confPath := fs.String("config", "", "Path to a YAML file with repository profiles")
	profile := fs.String("profile", "", "Profile name from the config file")
	progress := fs.Bool("progress", true, "Show a download progress bar")
	verbose := fs.Bool("v", false, "Verbose (debug) logging")
	fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: apt-fetch [flags] <package>...")
		fs.PrintDefaults()
		os.Exit(1)
	}

	setupLogging(*verbose)
	defer zap.L().Sync()

	spec, key, archs, err := resolveRepository(*repoSpec, *keyRef, *archList, *confPath, *profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(1)
	}

	downloader, err := apt.NewDownloader(spec, key, archs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(1)
	}
	downloader.Progress = *progress

	if err := os.MkdirAll(*dest, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: could not create destination directory %s: %v\n", *dest, err)
		os.Exit(1)
	}

	ctx := context.Background()
	for _, name := range fs.Args() {
		path, err := downloader.Download(ctx, name, *dest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
			os.Exit(1)
		}
		report(path)
	}
}

// resolveRepository merges config-file profile and flag values into the
// repository settings for this run. Flags win over the profile.
func resolveRepository(repoSpec, keyRef, archList, confPath, profile string) (spec string, key []byte, archs []string, err error) {
	if confPath != "" {
		if profile == "" {
			return "", nil, nil, fmt.Errorf("-config %s given without -profile", confPath)
		}
		config, err := decodeConfig(confPath)
		if err != nil {
			return "", nil, nil, fmt.Errorf("could not read config file %s: %w", confPath, err)
		}
		found := false
		for _, p := range config.Repositories {
			if p.Name == profile {
				spec, keyRef, archs = p.Repository, orDefault(keyRef, p.Key), p.Architectures
				found = true
				break
			}
		}
		if !found {
			return "", nil, nil, fmt.Errorf("profile %q not found in %s", profile, confPath)
		}
	}
	if repoSpec != "" {
		spec = repoSpec
	}
	if archList != "" {
		archs = splitComma(archList)
	}
	if len(archs) == 0 {
		archs = []string{"amd64"}
	}
	if keyRef != "" {
		if key, err = loadKey(keyRef); err != nil {
			return "", nil, nil, fmt.Errorf("could not load repository key %s: %w", keyRef, err)
		}
	}
	return spec, key, archs, nil
}

// loadKey reads repository key material from a local file or an http(s)
// URL.
func loadKey(ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		resp, err := http.Get(ref)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(ref)
}

// report opens the downloaded payload and prints its control identity.
func report(path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("Downloaded %s\n", path)
		return
	}
	defer f.Close()

	pkg, err := deb.NewPackage(f)
	if err != nil {
		fmt.Printf("Downloaded %s (unreadable control archive: %v)\n", path, err)
		return
	}
	fmt.Printf("Downloaded %s (%s %s, %s)\n", path, pkg.Metadata.Package, pkg.Metadata.Version, pkg.Metadata.Architecture)
}

func decodeConfig(path string) (*Config, error) {
	// Internal DTOs for YAML deserialization
	type yamlProfile struct {
		Name          string   `yaml:"name"`
		Repository    string   `yaml:"repository"`
		Key           string   `yaml:"key"`
		Architectures []string `yaml:"architectures"`
	}
	type yamlConfig struct {
		Repositories []yamlProfile `yaml:"repositories"`
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dto yamlConfig
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return nil, err
	}

	config := &Config{Repositories: make([]RepositoryProfile, len(dto.Repositories))}
	for i, p := range dto.Repositories {
		config.Repositories[i] = RepositoryProfile{
			Name:          p.Name,
			Repository:    p.Repository,
			Key:           p.Key,
			Architectures: p.Architectures,
		}
	}
	return config, nil
}

func setupLogging(verbose bool) {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		config := zap.NewProductionConfig()
		config.Encoding = "console"
		logger, err = config.Build()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: could not initialize logging: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func splitComma(s string) []string {
	var res []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
