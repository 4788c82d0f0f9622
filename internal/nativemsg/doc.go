// Package nativemsg implements the browser native messaging wire format:
// every message is a 4-byte little-endian length followed by that many
// bytes of UTF-8 JSON. Frames are concatenated on the stream with no
// other delimiter.
//
// Decode works on an accumulating buffer and reports an incomplete frame
// with ok == false rather than an error, so callers can feed it arbitrary
// read chunks. Reader wraps that loop around an io.Reader; Writer
// serialises frames onto an io.Writer.
package nativemsg
