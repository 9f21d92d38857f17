package binxml

// Token kinds, masked out of the first byte of every BinXML token with
// 0x0F (§4.4). The "more attributes" flag 0x40 is the only flag bit the
// kind-level dispatch consumes, distinguishing OpenStartElement (0x01)
// from its has-attributes form (0x41); Value and Attribute tokens carry
// the same flag but it does not change how this driver reads them.
const (
	tokEndOfStream          byte = 0x00
	tokOpenStartElement     byte = 0x01
	tokCloseStartElement    byte = 0x02
	tokCloseEmptyElement    byte = 0x03
	tokCloseElement         byte = 0x04
	tokValue                byte = 0x05
	tokAttribute            byte = 0x06
	tokCDATA                byte = 0x07
	tokCharRef              byte = 0x08
	tokEntityRef            byte = 0x09
	tokPITarget             byte = 0x0A
	tokPIData               byte = 0x0B
	tokTemplateInstance     byte = 0x0C
	tokNormalSubstitution   byte = 0x0D
	tokOptionalSubstitution byte = 0x0E
	tokFragmentHeader       byte = 0x0F

	tokFlagHasAttributes byte = 0x40
)
