package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tubechat/processors"
	"tubechat/utils"
)

const previewRunes = 60

func newNormalizeCommand(ctx *commandContext) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "normalize <file.vtt>",
		Short: "Print the paragraphs of a caption file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			n := processors.NewNormalizerFromConfig(&cfg.Processor)
			out := cmd.OutOrStdout()

			if plain {
				text, err := n.PlainTextFile(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, text)
				return nil
			}
			paragraphs, err := n.NormalizeFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, strings.Join(paragraphs, "\n\n"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Print cleaned caption lines without paragraph grouping")
	return cmd
}

func newChunkCommand(ctx *commandContext) *cobra.Command {
	var (
		size    int
		overlap int
		embed   bool
	)

	cmd := &cobra.Command{
		Use:   "chunk <file.vtt>",
		Short: "Show the overlapping word windows of a caption file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("size") {
				size = cfg.Processor.ChunkSize
			}
			if !cmd.Flags().Changed("overlap") {
				overlap = cfg.Processor.ChunkOverlap
			}

			paragraphs, err := processors.NewNormalizerFromConfig(&cfg.Processor).NormalizeFile(args[0])
			if err != nil {
				return err
			}

			embedFn := processors.ZeroEmbedFunc(cfg.EmbeddingDim)
			model, dim := cfg.EmbeddingModel, cfg.EmbeddingDim
			if embed {
				if !cfg.HasValidAPI() {
					return fmt.Errorf("--embed needs api_key and base_url to be configured")
				}
				llm := cfg.LLM()
				embedder := processors.NewEmbedder(processors.NewOpenAIClient(llm), cfg.EmbeddingModel, cfg.EmbeddingDim, logger)
				embedFn = embedder.EmbedFunc()
				model, dim = embedder.Model(), embedder.Dimension()
			}
			chunker := processors.NewChunker(embedFn, processors.ChunkerOptions{
				Model:       model,
				Dimension:   dim,
				Concurrency: cfg.Processor.EmbedConcurrency,
				Logger:      logger,
			})

			base := filepath.Base(args[0])
			videoID, _, _ := strings.Cut(base, ".")
			chunks, err := chunker.CreateChunks(cmd.Context(), paragraphs, size, overlap, videoID+".txt", videoID)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(chunks))
			for _, c := range chunks {
				rows = append(rows, []string{
					strconv.Itoa(c.ChunkID),
					strconv.Itoa(utils.WordCount(c.Text)),
					strconv.Itoa(c.EmbeddingDim),
					utils.Preview(c.Text, previewRunes),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Chunk", "Words", "Dim", "Text"}, rows, []columnAlignment{alignRight, alignRight, alignRight, alignLeft}))
			fmt.Fprintf(out, "%d paragraphs, %d chunks\n", len(paragraphs), len(chunks))
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", 300, "Window size in words")
	cmd.Flags().IntVar(&overlap, "overlap", 50, "Words shared by consecutive windows")
	cmd.Flags().BoolVar(&embed, "embed", false, "Call the embedding model instead of using zero vectors")
	return cmd
}
