// Package lifx is a small client for the LIFX HTTP API.
//
// It covers the two calls the bridge needs: listing the lights that match a
// selector and applying one batch of per-light states. Neither call retries;
// failures come back as *InventoryError or *UpdateError carrying the HTTP
// status and the API's error text.
package lifx
