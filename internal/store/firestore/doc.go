// Package firestore is the store driver for Cloud Firestore and the
// Firestore emulator, built on cloud.google.com/go/firestore.
//
// The driver translates between the codec's native values and the SDK's:
// codec.Reference becomes *firestore.DocumentRef, codec.GeoPoint becomes
// *latlng.LatLng and codec.Delete becomes firestore.Delete. Paths handed to
// and returned from the driver are relative to the database root
// ("users/alice"), never full resource names.
//
// SDK errors are wrapped in *store.ProviderError carrying the gRPC status
// code name.
package firestore
