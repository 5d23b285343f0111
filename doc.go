// Package smsbridge is a lightweight index for the subpackages in this module.
//
// This root package is documentation-only. Import specific subpackages to use
// concrete helpers.
//
// Available subpackages:
//   - github.com/spachava753/smsbridge/inbox
//     Bounded, filterable inbox reads with an empty-on-failure boundary.
//   - github.com/spachava753/smsbridge/android/telephony
//     Android telephony provider (mmssms.db) store for inbox.
//   - github.com/spachava753/smsbridge/channel
//     Method channels, the JSON method codec and a Messenger.
//   - github.com/spachava753/smsbridge/smschannel
//     The getMessages/searchMessages channel handler.
//   - github.com/spachava753/smsbridge/server
//     HTTP and WebSocket transport for method channels.
//   - github.com/spachava753/smsbridge/config
//     Viper-backed configuration.
//
// Command:
//   - github.com/spachava753/smsbridge/cmd/smsbridge
//     CLI: messages, search, serve.
//
// Discovery workflow:
//   - Run: go doc github.com/spachava753/smsbridge
//   - Then drill in with:
//     go doc github.com/spachava753/smsbridge/inbox
//     go doc github.com/spachava753/smsbridge/smschannel
package smsbridge
