// Package usn enumerates and tails the NTFS update sequence number
// journal: bulk enumeration of every record currently on the volume, and
// a change monitor that polls new entries after a scan completes.
package usn

// ChangeReason is a bitset decoded from a USN record's Reason field.
// Bit values match the Win32 USN_REASON_* constants exactly so a raw
// journal record's Reason can be cast directly to ChangeReason.
type ChangeReason uint32

const (
	ReasonDataOverwrite     ChangeReason = 0x00000001
	ReasonDataExtend        ChangeReason = 0x00000002
	ReasonDataTruncation    ChangeReason = 0x00000004
	ReasonNamedDataOverwrite ChangeReason = 0x00000010
	ReasonNamedDataExtend   ChangeReason = 0x00000020
	ReasonNamedDataTruncation ChangeReason = 0x00000040
	ReasonFileCreate        ChangeReason = 0x00000100
	ReasonFileDelete        ChangeReason = 0x00000200
	ReasonEAChange          ChangeReason = 0x00000400
	ReasonSecurityChange    ChangeReason = 0x00000800
	ReasonRenameOldName     ChangeReason = 0x00001000
	ReasonRenameNewName     ChangeReason = 0x00002000
	ReasonIndexableChange   ChangeReason = 0x00004000
	ReasonBasicInfoChange   ChangeReason = 0x00008000
	ReasonHardLinkChange    ChangeReason = 0x00010000
	ReasonCompressionChange ChangeReason = 0x00020000
	ReasonEncryptionChange  ChangeReason = 0x00040000
	ReasonObjectIDChange    ChangeReason = 0x00080000
	ReasonReparsePointChange ChangeReason = 0x00100000
	ReasonStreamChange      ChangeReason = 0x00200000
	ReasonTransactedChange  ChangeReason = 0x00400000
	ReasonIntegrityChange   ChangeReason = 0x00800000
	ReasonClose             ChangeReason = 0x80000000
)

// Has reports whether bit is set in the reason mask.
func (r ChangeReason) Has(bit ChangeReason) bool { return r&bit != 0 }

// allReasons enumerates the reason bits in a stable, documentation-friendly
// order for String().
var allReasons = []struct {
	bit  ChangeReason
	name string
}{
	{ReasonDataOverwrite, "DataOverwrite"},
	{ReasonDataExtend, "DataExtend"},
	{ReasonDataTruncation, "DataTruncation"},
	{ReasonNamedDataOverwrite, "NamedDataOverwrite"},
	{ReasonNamedDataExtend, "NamedDataExtend"},
	{ReasonNamedDataTruncation, "NamedDataTruncation"},
	{ReasonFileCreate, "FileCreate"},
	{ReasonFileDelete, "FileDelete"},
	{ReasonEAChange, "EAChange"},
	{ReasonSecurityChange, "SecurityChange"},
	{ReasonRenameOldName, "RenameOldName"},
	{ReasonRenameNewName, "RenameNewName"},
	{ReasonIndexableChange, "IndexableChange"},
	{ReasonBasicInfoChange, "BasicInfoChange"},
	{ReasonHardLinkChange, "HardLinkChange"},
	{ReasonCompressionChange, "CompressionChange"},
	{ReasonEncryptionChange, "EncryptionChange"},
	{ReasonObjectIDChange, "ObjectIDChange"},
	{ReasonReparsePointChange, "ReparsePointChange"},
	{ReasonStreamChange, "StreamChange"},
	{ReasonTransactedChange, "TransactedChange"},
	{ReasonIntegrityChange, "IntegrityChange"},
	{ReasonClose, "Close"},
}

// String renders the set bits joined by "|", e.g. "FileCreate|Close".
func (r ChangeReason) String() string {
	if r == 0 {
		return ""
	}
	s := ""
	for _, e := range allReasons {
		if r.Has(e.bit) {
			if s != "" {
				s += "|"
			}
			s += e.name
		}
	}
	return s
}
