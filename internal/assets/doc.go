// Package assets defines the asset domain shared by every other package:
// the persisted Record, the transient UploadedFile handed over by the upload
// layer, MIME classification rules, and the error taxonomy.
//
// The file layout derived from these types is a contract:
//
//	{repositoryRoot}/{id}.{subtype}          primary file
//	{thumbnailRoot}/{id}{thumbnailExt}       derived thumbnail
//
// Changing either naming rule requires a migration of stored files.
package assets
