package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"omibyte.io/hwio/objfile"
	"omibyte.io/hwio/targets"
)

var (
	errBadFieldWidth = errors.New("field width must be 8, 16, 32, or 64")
	errBadRecord     = errors.New("record does not match the layout")
	errValueRange    = errors.New("value does not fit in its field width")
	errEmptyManifest = errors.New("manifest declares no layout or no records")

	emitOpts = struct {
		manifest string
		output   string
		chip     string
		series   string
	}{}

	emitCmd = &cobra.Command{
		Use:   "emit",
		Short: "Emit a linker-set object file from a manifest",
		Long: `Build a relocatable object file whose named section holds the records
described by a YAML manifest. The manifest declares a fixed record layout and
the rows to encode; the target (--chip or --series) selects the object
flavor, byte order, and section-name spelling. Records are encoded at the
natural alignment of each field, in the target's byte order.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(emitOpts.chip) == 0 && len(emitOpts.series) == 0 {
				println("no target specified.")
				println("Example:")
				println(`--chip=atsamd21g18a`)
				println(`--series=samd21`)
				cmd.Help()
				return
			}

			var target targets.TargetInfo
			var err error
			if len(emitOpts.chip) > 0 {
				target, err = targets.All().FindByChip(emitOpts.chip)
			} else {
				target, err = targets.All().FindBySeries(emitOpts.series)
			}
			if err != nil {
				fatal(err)
			}

			m, err := loadManifest(emitOpts.manifest)
			if err != nil {
				fatal(err)
			}

			raw, err := m.encode(target.Order())
			if err != nil {
				fatal(err)
			}
			raw.Section = target.SectionSpelling(m.Section)

			opts, err := target.ObjfileOptions()
			if err != nil {
				fatal(err)
			}

			if err := objfile.WriteRawFile(emitOpts.output, raw, opts); err != nil {
				fatal(err)
			}
			fmt.Printf("%s: %d records of %d bytes in %s\n",
				emitOpts.output, len(m.Records), raw.RecordSize, raw.Section)
		},
	}
)

func init() {
	emitCmd.Flags().StringVarP(&emitOpts.manifest, "manifest", "m", "", "manifest file")
	emitCmd.Flags().StringVarP(&emitOpts.output, "output", "o", "set.o", "output object file")
	emitCmd.Flags().StringVar(&emitOpts.chip, "chip", "", "target chip")
	emitCmd.Flags().StringVar(&emitOpts.series, "series", "", "target series")
	emitCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(emitCmd)
}

type manifestField struct {
	Name  string `yaml:"name"`
	Width int    `yaml:"width"`
}

type manifest struct {
	Section string          `yaml:"section"`
	Used    bool            `yaml:"used"`
	Layout  []manifestField `yaml:"layout"`
	Records [][]uint64      `yaml:"records"`
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m.Layout) == 0 || len(m.Records) == 0 {
		return nil, errEmptyManifest
	}
	return &m, nil
}

// encode lays the manifest's rows out as fixed-size records: each field at
// its natural alignment, the record padded out to the widest field's
// alignment, values in the target byte order.
func (m *manifest) encode(order binary.ByteOrder) (objfile.Raw, error) {
	offsets := make([]int, len(m.Layout))
	offset := 0
	maxAlign := 1
	for i, field := range m.Layout {
		size := field.Width / 8
		switch field.Width {
		case 8, 16, 32, 64:
		default:
			return objfile.Raw{}, fmt.Errorf("%w: field %q is %d bits", errBadFieldWidth, field.Name, field.Width)
		}
		offset = alignUp(offset, size)
		offsets[i] = offset
		offset += size
		if size > maxAlign {
			maxAlign = size
		}
	}
	recordSize := alignUp(offset, maxAlign)

	data := make([]byte, 0, recordSize*len(m.Records))
	for r, row := range m.Records {
		if len(row) != len(m.Layout) {
			return objfile.Raw{}, fmt.Errorf("%w: record %d has %d values, layout has %d fields",
				errBadRecord, r, len(row), len(m.Layout))
		}
		record := make([]byte, recordSize)
		for i, value := range row {
			field := m.Layout[i]
			if field.Width < 64 && value >= uint64(1)<<uint(field.Width) {
				return objfile.Raw{}, fmt.Errorf("%w: record %d field %q holds %#x",
					errValueRange, r, field.Name, value)
			}
			switch field.Width {
			case 8:
				record[offsets[i]] = uint8(value)
			case 16:
				order.PutUint16(record[offsets[i]:], uint16(value))
			case 32:
				order.PutUint32(record[offsets[i]:], uint32(value))
			case 64:
				order.PutUint64(record[offsets[i]:], value)
			}
		}
		data = append(data, record...)
	}

	return objfile.Raw{
		Used:       m.Used,
		Data:       data,
		RecordSize: recordSize,
		Align:      maxAlign,
	}, nil
}

func alignUp(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}
