// Package lights holds the device inventory and the palette distribution
// rules shared by the bridge and the LIFX client.
//
// Assign is pure: it maps a palette onto an ordered inventory, one
// assignment per device, cycling through the de-duplicated palette when
// there are more devices than colours.
package lights
