package twentyfour

import (
	"encoding/xml"

	"github.com/biso/functions/internal/soap"
)

// SOAP array types. Each is left out of the envelope when empty.

// KeyValuePairs is an ArrayOfKeyValuePair.
type KeyValuePairs []KeyValuePair

func (l KeyValuePairs) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return soap.MarshalList(e, start, "KeyValuePair", l)
}

func (l *KeyValuePairs) UnmarshalXML(d *xml.Decoder, start xml.StartElement) (err error) {
	*l, err = soap.UnmarshalList[KeyValuePair](d, start, "KeyValuePair")
	return err
}

// FrameInfos is an ArrayOfImageFrameInfo.
type FrameInfos []ImageFrameInfo

func (l FrameInfos) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return soap.MarshalList(e, start, "ImageFrameInfo", l)
}

func (l *FrameInfos) UnmarshalXML(d *xml.Decoder, start xml.StartElement) (err error) {
	*l, err = soap.UnmarshalList[ImageFrameInfo](d, start, "ImageFrameInfo")
	return err
}

// Ints is an ArrayOfInt.
type Ints []int

func (l Ints) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return soap.MarshalList(e, start, "int", l)
}

func (l *Ints) UnmarshalXML(d *xml.Decoder, start xml.StartElement) (err error) {
	*l, err = soap.UnmarshalList[int](d, start, "int")
	return err
}

// Flags is an ArrayOfFlagType.
type Flags []FlagType

func (l Flags) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return soap.MarshalList(e, start, "FlagType", l)
}

func (l *Flags) UnmarshalXML(d *xml.Decoder, start xml.StartElement) (err error) {
	*l, err = soap.UnmarshalList[FlagType](d, start, "FlagType")
	return err
}

// Dimensions is an ArrayOfUserDefinedDimension.
type Dimensions []UserDefinedDimension

func (l Dimensions) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return soap.MarshalList(e, start, "UserDefinedDimension", l)
}

func (l *Dimensions) UnmarshalXML(d *xml.Decoder, start xml.StartElement) (err error) {
	*l, err = soap.UnmarshalList[UserDefinedDimension](d, start, "UserDefinedDimension")
	return err
}

// Strings is an ArrayOfString.
type Strings []string

func (l Strings) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return soap.MarshalList(e, start, "string", l)
}

func (l *Strings) UnmarshalXML(d *xml.Decoder, start xml.StartElement) (err error) {
	*l, err = soap.UnmarshalList[string](d, start, "string")
	return err
}
