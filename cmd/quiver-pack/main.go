/*
quiver-pack builds a package directory out of raw game assets: it scans a
source tree, hashes every recognized asset and writes the manifest that
offline and host-online packages are served from.
*/
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/quiver/engine/asset"
)

var (
	flagSrc       string
	flagOut       string
	flagName      string
	flagVersion   string
	flagTags      []string
	flagEmbedded  bool
	flagNameStyle string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "quiver-pack",
		Short:         "Build quiver asset package manifests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Scan an asset directory and emit a package manifest",
		RunE:  runBuild,
	}
	buildCmd.Flags().StringVar(&flagSrc, "src", "", "asset source directory (required)")
	buildCmd.Flags().StringVar(&flagOut, "out", "", "output package directory (required)")
	buildCmd.Flags().StringVar(&flagName, "name", "DefaultPackage", "package name")
	buildCmd.Flags().StringVar(&flagVersion, "version", "", "package version (defaults to a timestamp)")
	buildCmd.Flags().StringArrayVar(&flagTags, "tag", nil, "tag rule ext=tag, e.g. --tag .wav=audio")
	buildCmd.Flags().BoolVar(&flagEmbedded, "embedded", true, "mark assets as shipped in the read-only directory")
	buildCmd.Flags().StringVar(&flagNameStyle, "name-style", asset.NameStyleLocation, "output file naming: location or hash")
	_ = buildCmd.MarkFlagRequired("src")
	_ = buildCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(buildCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "quiver-pack:", err)
		os.Exit(1)
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	tags, err := parseTagRules(flagTags)
	if err != nil {
		return err
	}

	packer := &asset.Packer{
		SrcDir:          flagSrc,
		PackageName:     flagName,
		Version:         flagVersion,
		Tags:            tags,
		MarkEmbedded:    flagEmbedded,
		OutputNameStyle: flagNameStyle,
	}
	m, err := packer.BuildTo(flagOut)
	if err != nil {
		return err
	}

	fmt.Printf("package '%s' version '%s': %d assets written to %s\n",
		m.PackageName, m.PackageVersion, len(m.Assets), flagOut)
	return nil
}

func parseTagRules(rules []string) (map[string]string, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(rules))
	for _, rule := range rules {
		ext, tag, ok := strings.Cut(rule, "=")
		if !ok || ext == "" || tag == "" {
			return nil, fmt.Errorf("invalid tag rule '%s', expected ext=tag", rule)
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[strings.ToLower(ext)] = tag
	}
	return out, nil
}
