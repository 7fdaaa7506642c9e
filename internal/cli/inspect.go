package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"cast-extractor/internal/export"
	"cast-extractor/internal/extract"
	"cast-extractor/internal/graph"
	"cast-extractor/internal/scan"
	"cast-extractor/internal/store"
	"cast-extractor/internal/textutil"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func chunksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chunks <file>",
		Short: "Print the chunk table of one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			opts, err := extractOptions(cfg)
			if err != nil {
				return err
			}
			rep, err := extract.File(args[0], opts)
			if err != nil {
				return err
			}
			fmt.Println(export.ChunkTable(rep))
			fmt.Printf("%s  %s  %s  mode=%s  status=%s\n", rep.Signature, rep.Codec, rep.ByteOrder, rep.Mode, rep.Status)
			return nil
		},
	}
}

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Scan a file for strings without parsing its structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			dec, err := textutil.DecoderFor(cfg.TextEncoding)
			if err != nil {
				return err
			}
			minLen, _ := cmd.Flags().GetInt("min")
			if minLen <= 0 {
				minLen = cfg.PascalMinLength
			}
			runs, _ := cmd.Flags().GetBool("runs")

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			cs := scan.PascalStrings(data, 0, minLen, dec)
			cs = append(cs, scan.NullTerminated(data, 0, minLen, dec)...)
			if runs {
				cs = append(cs, scan.PrintableRuns(data, 0, cfg.PrintableRunMin, dec)...)
			}
			sort.SliceStable(cs, func(i, j int) bool { return cs[i].Offset < cs[j].Offset })

			fmt.Println(export.CandidateTable(cs, 60))
			log.Info().Str("file", args[0]).Int("candidates", len(cs)).Msg("Scan complete")
			return nil
		},
	}

	cmd.Flags().Int("min", 0, "Minimum string length (default $PASCAL_MIN_LENGTH)")
	cmd.Flags().Bool("runs", false, "Also report printable runs")

	return cmd
}

func contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context <file> <needle>",
		Short: "Show the strings surrounding every occurrence of a needle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			dec, err := textutil.DecoderFor(cfg.TextEncoding)
			if err != nil {
				return err
			}
			radius, _ := cmd.Flags().GetInt("radius")
			hex, _ := cmd.Flags().GetBool("hex")

			needle, err := dec.Encode(args[1])
			if err != nil {
				return fmt.Errorf("encode needle: %w", err)
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			matches := scan.Context(data, needle, radius, cfg.PascalMinLength, dec)
			for _, m := range matches {
				fmt.Printf("match at 0x%08x (window 0x%08x-0x%08x)\n", m.NeedleOffset, m.WindowStart, m.WindowEnd)
				if hex {
					fmt.Print(scan.HexDump(data[m.WindowStart:m.WindowEnd], m.WindowStart))
				}
				fmt.Println(export.CandidateTable(m.Strings, 60))
			}
			if len(matches) == 0 {
				log.Warn().Str("needle", args[1]).Msg("Needle not found")
			}
			return nil
		},
	}

	cmd.Flags().Int("radius", 200, "Bytes to scan on either side of each match")
	cmd.Flags().Bool("hex", false, "Print a hex dump of each window")

	return cmd
}

func soundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sounds <file> <output-dir>",
		Short: "Write the audio resources linked from sound members",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			opts, err := extractOptions(cfg)
			if err != nil {
				return err
			}
			match, _ := cmd.Flags().GetString("match")

			buf, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			rep := extract.Bytes(args[0], buf, opts)
			files, err := export.WriteSounds(buf, rep, args[1], match)

			rows := make([][]string, 0, len(files))
			for _, f := range files {
				rows = append(rows, []string{f.Key, f.Path, strconv.Itoa(f.Size)})
			}
			fmt.Println(export.Table([]string{"Member", "Path", "Bytes"}, rows))
			return err
		},
	}

	cmd.Flags().String("match", "", "Only members whose name contains this text")

	return cmd
}

func similarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <text>",
		Short: "Find stored strings that look like the given text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			cfg := loadConfig(cmd)
			limit, _ := cmd.Flags().GetInt("limit")

			pgPool, _, err := initDependencies(ctx, cfg, true, false)
			if err != nil {
				return err
			}
			defer pgPool.Close()

			matches, err := store.New(pgPool).Similar(ctx, args[0], limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(matches))
			for _, m := range matches {
				rows = append(rows, []string{
					fmt.Sprintf("%.4f", m.Distance), m.File, m.Key, m.Kind, textutil.Truncate(m.Text, 60),
				})
			}
			fmt.Println(export.Table([]string{"Distance", "File", "Key", "Kind", "Text"}, rows))
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 10, "Number of matches")

	return cmd
}

func danglingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dangling",
		Short: "List member links that point at missing chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			cfg := loadConfig(cmd)
			file, _ := cmd.Flags().GetString("file")

			_, neo4jDriver, err := initDependencies(ctx, cfg, false, true)
			if err != nil {
				return err
			}
			defer neo4jDriver.Close(ctx)

			links, err := graph.NewGraphQuerier(neo4jDriver).DanglingLinks(ctx, file)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(links))
			for _, l := range links {
				rows = append(rows, []string{
					l.File, l.Library, strconv.FormatInt(l.Member, 10), l.Name,
					strconv.FormatInt(l.ChunkID, 10), l.FourCC, l.Reason,
				})
			}
			fmt.Println(export.Table([]string{"File", "Library", "Member", "Name", "Chunk", "FourCC", "Reason"}, rows))
			return nil
		},
	}

	cmd.Flags().String("file", "", "Only movies whose path contains this text")

	return cmd
}
