package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/lucasew/diskcache"
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Store a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		fromFile, _ := cmd.Flags().GetBool("from-file")

		raw := args[1]
		if fromFile {
			b, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			raw = string(b)
		}

		v, err := parseValue(typ, raw)
		if err != nil {
			return err
		}
		return withStore(cmd, func(s *diskcache.Store) error {
			if !s.Put(args[0], v, ttl) {
				return fmt.Errorf("failed to store %s", args[0])
			}
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *diskcache.Store) error {
			v, ok := s.Get(args[0])
			if !ok {
				return fmt.Errorf("%s: not found", args[0])
			}
			_, err := cmd.OutOrStdout().Write(formatValue(v))
			return err
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <key>...",
	Short: "Remove entries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *diskcache.Store) error {
			for _, key := range args {
				if !s.Remove(key) {
					return fmt.Errorf("failed to remove %s", key)
				}
			}
			return nil
		})
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		permanent, _ := cmd.Flags().GetBool("permanent")
		return withStore(cmd, func(s *diskcache.Store) error {
			entries := s.Keys()
			if permanent {
				entries = s.PermanentKeys()
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tTYPE\tSIZE\tSAVED\tTTL\tLAST USED\tEXPIRED")
			for _, e := range entries {
				ttl := "-"
				if !e.Permanent() {
					ttl = e.ValidTime.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%t\n",
					e.Key, e.Tag, e.Size, e.SaveTime.Format(time.RFC3339), ttl, e.LastModified.Format(time.RFC3339), e.Expired)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(putCmd, getCmd, rmCmd, keysCmd)
	putCmd.Flags().String("type", "string", "Value type (int, long, float, double, bool, string, bytes, json)")
	putCmd.Flags().Duration("ttl", 0, "Time to live (0 never expires)")
	putCmd.Flags().Bool("from-file", false, "Read the value from the file named by <value>")
	keysCmd.Flags().Bool("permanent", false, "Only list entries without a TTL")
}

func parseValue(typ, raw string) (diskcache.Value, error) {
	switch typ {
	case "int":
		i, err := strconv.ParseInt(raw, 10, 32)
		return diskcache.Int(i), err
	case "long":
		i, err := strconv.ParseInt(raw, 10, 64)
		return diskcache.Long(i), err
	case "float":
		f, err := strconv.ParseFloat(raw, 32)
		return diskcache.Float(f), err
	case "double":
		f, err := strconv.ParseFloat(raw, 64)
		return diskcache.Double(f), err
	case "bool":
		b, err := strconv.ParseBool(raw)
		return diskcache.Bool(b), err
	case "string":
		return diskcache.String(raw), nil
	case "bytes":
		return diskcache.Bytes(raw), nil
	case "json":
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("invalid json value")
		}
		return diskcache.Entity{V: json.RawMessage(raw)}, nil
	}
	return nil, fmt.Errorf("unknown type: %s", typ)
}

func formatValue(v diskcache.Value) []byte {
	switch v := v.(type) {
	case diskcache.Bytes:
		return v
	case diskcache.Entity:
		return append(v.Raw(), '\n')
	case diskcache.Image:
		return fmt.Appendf(nil, "image %v\n", v.Bounds())
	case diskcache.Object:
		return []byte("(serialized object)\n")
	}
	return fmt.Appendf(nil, "%v\n", v)
}
