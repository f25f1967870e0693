// Package searchcmder provides the search command for similarity search over
// indexed documents.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apisearch "github.com/rasaya1/OCRFastAPI/api/search"
	"github.com/rasaya1/OCRFastAPI/cmd/ocrfast/services"
	"github.com/rasaya1/OCRFastAPI/pkg/cliui"
	"github.com/rasaya1/OCRFastAPI/pkg/config"
)

const previewWidth = 80

type searchCommander struct {
	flags config.FlagSet

	query  string
	topK   int
	quiet  bool
	remote bool

	apiTarget string
	storeDir  string
	storeBknd string
	embedProv string
	embedTgt  string
	embedMdl  string
	embedDims uint

	configDir string
	viper     *viper.Viper
	logger    *slog.Logger
	out       io.Writer
}

const searchLongDesc string = `Search indexed documents by similarity.

Embeds the query and returns the most similar documents in the store with
their type, OCR confidence and a text preview. By default the local store
is searched; with --remote the query goes to a running "ocrfast serve".

Use --quiet to output only file paths, one per line, for piping into other
commands.

Examples:
  ocrfast search "invoice from ACME"
  ocrfast search "lease agreement" --top 10
  ocrfast search "quarterly revenue" --remote --api-target http://docs:8000
  ocrfast search "receipt" --quiet | xargs -n1 ocrfast entities`

const searchShortDesc string = "Search indexed documents"

var searchFlags = []string{
	config.FlagAPITarget,
	config.FlagStoreDir,
	config.FlagStoreBackend,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{flags: config.Registry}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, searchFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			cmder.logger = services.Logger(cmd)
			cmder.out = cmd.OutOrStdout()

			if cmder.topK <= 0 {
				return fmt.Errorf("--top must be a positive integer, got %d", cmder.topK)
			}

			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&cmder.topK, "top", "k", apisearch.DefaultTopK, "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only file paths, one per line (for piping)")
	cmd.Flags().BoolVar(&cmder.remote, "remote", false, "Query the ocrfast API server instead of the local store")
	config.AddStringFlag(cmd, cmder.flags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStoreDir, &cmder.storeDir)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStoreBackend, &cmder.storeBknd)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingProv, &cmder.embedProv)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingTgt, &cmder.embedTgt)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingModel, &cmder.embedMdl)
	config.AddUintFlag(cmd, cmder.flags, config.FlagEmbeddingDims, &cmder.embedDims)

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	var (
		output *apisearch.SearchOutput
		err    error
	)
	if c.remote {
		output, err = SearchAPI(ctx, c.viper.GetString("client.api_target"), c.query, c.topK)
	} else {
		output, err = c.searchLocal(ctx)
	}
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Fprintln(c.out, "No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range output.Results {
			fmt.Fprintln(c.out, result.FilePath)
		}
		return nil
	}

	fmt.Fprintf(c.out, "\n%s %s\n\n",
		cliui.HeaderStyle.Render("Search Results for:"),
		cliui.NameStyle.Render(fmt.Sprintf("%q", output.Query)),
	)
	for i, result := range output.Results {
		c.printResult(i+1, result)
	}

	return nil
}

func (c *searchCommander) searchLocal(ctx context.Context) (*apisearch.SearchOutput, error) {
	s, err := services.OpenStore(ctx, c.viper, c.configDir, c.logger)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return apisearch.Search(ctx, s, c.query, c.topK, c.logger)
}

func (c *searchCommander) printResult(rank int, result apisearch.SearchResult) {
	fmt.Fprintf(c.out, "  %s  %s  %s  %s\n",
		cliui.RankStyle.Render(fmt.Sprintf("#%d", rank)),
		cliui.ScoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		cliui.TypeStyle.Render(string(result.DocumentType)),
		cliui.NameStyle.Render(result.FilePath),
	)
	fmt.Fprintf(c.out, "  %s\n", cliui.PreviewStyle.Render(cliui.Preview(result.Preview, previewWidth)))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(
		fmt.Sprintf("ocr confidence %.1f%% · processed %s", result.OCRConfidence, result.ProcessedDate),
	))
}

// SearchAPI calls the ocrfast search API and returns the parsed output.
func SearchAPI(ctx context.Context, apiTarget, query string, topK int) (*apisearch.SearchOutput, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = "/v1/search"
	q := searchURL.Query()
	q.Set("query", query)
	q.Set("top_k", strconv.Itoa(topK))
	searchURL.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ocrfast API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output apisearch.SearchOutput
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, nil
}
