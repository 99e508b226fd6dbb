// Package transcoder drives ffprobe and ffmpeg to extract media metadata and
// render thumbnails.
//
// Every tool invocation runs under exec.CommandContext with the configured
// timeout. Image sources are streamed to the tools on stdin; video sources
// are first materialized with [WithTempFile], which removes the copy on every
// return path. When ffmpeg cannot render a raster image the package can fall
// back to decoding it in-process with libvips or the imaging library.
package transcoder
