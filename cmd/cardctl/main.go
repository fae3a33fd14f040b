package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"membership/internal/card"
	"membership/internal/config"
	"membership/internal/logger"
	"membership/internal/qrstyle"
	"membership/internal/scan"
)

var version = "v0.1.0"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "cardctl",
		Short:        "Render and scan SEDS CUSAT member ID cards",
		SilenceUsage: true,
	}
	root.SetOut(out)

	var stylePath string
	root.PersistentFlags().StringVar(&stylePath, "style", "", "Path to a YAML style file")

	// --- render command ------------------------------------------------------
	var (
		id      card.Identity
		outPath string
		scale   float64
	)
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render an ID card PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				outPath = id.AccountID + "-id-card.png"
			}
			return runRender(cmd.Context(), out, stylePath, id, outPath, scale)
		},
	}
	renderCmd.Flags().StringVar(&id.Name, "name", "", "Member name")
	renderCmd.Flags().StringVar(&id.Email, "email", "", "Member email")
	renderCmd.Flags().StringVar(&id.AccountID, "account-id", "", "External account id")
	renderCmd.Flags().StringVar(&id.UniqueID, "unique-id", uuid.NewString(), "Identifier encoded in the QR code")
	renderCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default <account-id>-id-card.png)")
	renderCmd.Flags().Float64Var(&scale, "scale", 2, "Device pixel ratio")
	_ = renderCmd.MarkFlagRequired("name")
	_ = renderCmd.MarkFlagRequired("email")
	_ = renderCmd.MarkFlagRequired("account-id")
	root.AddCommand(renderCmd)

	// --- qr command ----------------------------------------------------------
	var qrOut string
	var withLogo bool
	qrCmd := &cobra.Command{
		Use:   "qr [payload]",
		Short: "Render a styled QR code PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQR(out, stylePath, args[0], qrOut, withLogo)
		},
	}
	qrCmd.Flags().StringVarP(&qrOut, "out", "o", "qr.png", "Output file")
	qrCmd.Flags().BoolVar(&withLogo, "logo", true, "Overlay the club logo")
	root.AddCommand(qrCmd)

	// --- scan command --------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "scan [image]",
		Short: "Print the identifier encoded in a card or QR image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(out, args[0])
		},
	})

	// --- version command -----------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "cardctl %s\n", version)
		},
	})

	return root
}

func loadSpec(stylePath string) (qrstyle.Spec, error) {
	return config.Card{StyleFile: stylePath}.QRSpec()
}

func runRender(ctx context.Context, out io.Writer, stylePath string, id card.Identity, outPath string, scale float64) error {
	spec, err := loadSpec(stylePath)
	if err != nil {
		return err
	}
	assets, err := card.LoadAssets()
	if err != nil {
		return err
	}
	r := card.NewRenderer(assets, spec, os.TempDir(), scale, logger.NewWithWriter(io.Discard, 0))
	img, err := r.Render(ctx, id)
	if err != nil {
		return err
	}
	if err := card.WritePNG(outPath, img); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%dx%d) for %s\n", outPath, img.Bounds().Dx(), img.Bounds().Dy(), id.UniqueID)
	return nil
}

func runQR(out io.Writer, stylePath, payload, outPath string, withLogo bool) error {
	spec, err := loadSpec(stylePath)
	if err != nil {
		return err
	}
	var logo image.Image
	if withLogo {
		assets, err := card.LoadAssets()
		if err != nil {
			return err
		}
		logo = assets.Logo
	}
	png, err := qrstyle.ComposePNG(payload, logo, spec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, png, 0o644); err != nil {
		return fmt.Errorf("failed to write qr code: %w", err)
	}
	fmt.Fprintf(out, "wrote %s\n", outPath)
	return nil
}

func runScan(out io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := scan.ReadImage(f)
	if err != nil {
		return err
	}
	payload, err := card.ScanPayload(img)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, payload)
	return nil
}
