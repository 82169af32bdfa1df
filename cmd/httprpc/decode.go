package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/mnehpets/httprpc/codec"
	"github.com/mnehpets/httprpc/endpoint"
	"github.com/mnehpets/httprpc/value"
)

type decodeOptions struct {
	From      string
	To        string
	Delimiter string
	Charset   string
	Indent    bool
}

func newDecodeCommand() *cobra.Command {
	opts := &decodeOptions{}

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode a JSON or CSV stream and re-encode it",
		Long: `Decode a JSON or CSV stream and re-encode it.

The input is read from file, or from stdin when file is omitted or "-".
CSV input is decoded one record at a time, with the first record naming
the columns, so arbitrarily large files stream through.

Example:
  httprpc decode --from csv --charset iso-8859-1 people.csv
  echo '{"a":[1,2]}' | httprpc decode --indent`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runDecode(opts, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.From, "from", "json", "input format (json|csv)")
	cmd.Flags().StringVar(&opts.To, "to", "json", "output format (json|csv|cbor)")
	cmd.Flags().StringVar(&opts.Delimiter, "delimiter", ",", "CSV field delimiter")
	cmd.Flags().StringVar(&opts.Charset, "charset", "utf-8", "CSV input character set")
	cmd.Flags().BoolVar(&opts.Indent, "indent", false, "indent JSON output")
	return cmd
}

func runDecode(opts *decodeOptions, in io.Reader, out io.Writer) error {
	enc, err := opts.encoder()
	if err != nil {
		return err
	}

	var v value.Value
	switch opts.From {
	case "json":
		raw, err := codec.NewJSONDecoder().Decode(in)
		if err != nil {
			return err
		}
		if v, err = value.Adapt(raw); err != nil {
			return err
		}
	case "csv":
		d := codec.NewCSVDecoder()
		if opts.Delimiter != "" {
			r, size := utf8.DecodeRuneInString(opts.Delimiter)
			if size != len(opts.Delimiter) {
				return fmt.Errorf("delimiter must be a single character, got %q", opts.Delimiter)
			}
			d.Delimiter = r
		}
		cs, err := htmlindex.Get(opts.Charset)
		if err != nil {
			return fmt.Errorf("charset %q: %w", opts.Charset, err)
		}
		d.Charset = cs
		cur, err := d.Decode(in)
		if err != nil {
			return err
		}
		if v, err = cur.AdaptValue(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown input format %q", opts.From)
	}

	if c, ok := enc.(endpoint.Checker); ok {
		if err := c.Check(v); err != nil {
			if cl, ok := v.(io.Closer); ok {
				_ = cl.Close()
			}
			return err
		}
	}
	w := bufio.NewWriter(out)
	if err := enc.Encode(w, v); err != nil {
		return err
	}
	if opts.To == "json" {
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (o *decodeOptions) encoder() (endpoint.Encoder, error) {
	switch o.To {
	case "json":
		return &codec.JSONEncoder{Indent: o.Indent}, nil
	case "csv":
		return codec.NewCSVEncoder(), nil
	case "cbor":
		return codec.NewCBOREncoder(), nil
	}
	return nil, fmt.Errorf("unknown output format %q", o.To)
}
