// Package authcard implements a server-rendered authentication card: a
// sign in form and a registration form behind one tab switcher, a
// post-registration panel, and a page exit that hard-redirects once a
// visitor has signed in.
//
// Pages:
//   - Every visitor gets a Page holding a Card (the view mode state machine
//     with its mounted LoginFlow or RegisterFlow) and a Shell (the one-way
//     exit and redirect). All mutations of a page run on its EventLoop;
//     backend round trips run outside the loop and post their result back.
//   - Timed continuations (the sign in handoff and the redirect) go through
//     a Scheduler and are never cancelled.
//
// Backends:
//   - Backend combines Authenticator and ProfileStore. provider/gotrue talks
//     to a hosted GoTrue/PostgREST service, provider/local keeps accounts in
//     SQLite.
//
// Snapshots:
//   - Pages can persist a Snapshot (view mode, direction, exit state) after
//     every event through a SnapshotStore so another process can resume the
//     page. Snapshots never carry credentials, profile data or feedback.
//
// Activity sinks:
//   - ActivitySink receives audit events for sign in, registration, mode
//     changes and the exit sequence. Sinks run best-effort.
package authcard
