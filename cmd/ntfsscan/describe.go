package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-ntfs/pkg/ntfsscan"
)

var describeCmd = &cobra.Command{
	Use:   "describe <drive-letter>",
	Short: "Print a volume's label, serial number, and NTFS geometry without scanning it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	desc, err := ntfsscan.DescribeVolume(args[0])
	if err != nil {
		return fmt.Errorf("describing volume: %w", err)
	}

	switch outputFormat {
	case "json":
		fmt.Printf(
			`{"drive_letter":%q,"volume_label":%q,"serial_number":%d,"filesystem":%q,"bytes_per_sector":%d,"sectors_per_cluster":%d}`+"\n",
			desc.DriveLetter, desc.VolumeLabel, desc.SerialNumber, desc.FilesystemName,
			desc.NtfsVolumeData.BytesPerSector, desc.NtfsVolumeData.SectorsPerCluster,
		)
	default:
		fmt.Printf("Drive:               %s\n", desc.DriveLetter)
		fmt.Printf("Label:               %s\n", desc.VolumeLabel)
		fmt.Printf("Serial number:       %#x\n", desc.SerialNumber)
		fmt.Printf("Filesystem:          %s\n", desc.FilesystemName)
		fmt.Printf("Bytes per sector:    %d\n", desc.NtfsVolumeData.BytesPerSector)
		fmt.Printf("Sectors per cluster: %d\n", desc.NtfsVolumeData.SectorsPerCluster)
	}

	return nil
}
