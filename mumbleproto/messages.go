package mumbleproto

import "google.golang.org/protobuf/encoding/protowire"

// Version is the first message exchanged on connect, both ways. The
// advertised client version packs (major<<16 | minor<<8 | patch) into
// a single uint32; see package version for the pack/unpack helpers.
type Version struct {
	Version   uint32
	Release   string
	OS        string
	OSVersion string
}

func (m *Version) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, uint64(m.Version))
	b = appendString(b, 2, m.Release)
	b = appendString(b, 3, m.OS)
	b = appendString(b, 4, m.OSVersion)
	return b, nil
}

func (m *Version) Unmarshal(data []byte) error {
	*m = Version{}
	for len(data) > 0 {
		num, typ, rest, err := consumeTag(data)
		if err != nil {
			return err
		}
		switch num {
		case 1:
			v, r, err := consumeVarint(rest)
			if err != nil {
				return err
			}
			m.Version, data = uint32(v), r
		case 2:
			m.Release, data, err = consumeString(rest)
			if err != nil {
				return err
			}
		case 3:
			m.OS, data, err = consumeString(rest)
			if err != nil {
				return err
			}
		case 4:
			m.OSVersion, data, err = consumeString(rest)
			if err != nil {
				return err
			}
		default:
			data, err = skipField(num, typ, rest)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Authenticate carries the client's login credentials and access
// tokens. It's the second message sent on connect.
type Authenticate struct {
	Username string
	Password string
	Tokens   []string
	Opus     bool
}

func (m *Authenticate) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Username)
	b = appendString(b, 2, m.Password)
	b = appendStringSlice(b, 3, m.Tokens)
	b = appendBool(b, 5, m.Opus)
	return b, nil
}

func (m *Authenticate) Unmarshal(data []byte) error {
	*m = Authenticate{}
	for len(data) > 0 {
		num, typ, rest, err := consumeTag(data)
		if err != nil {
			return err
		}
		switch num {
		case 1:
			m.Username, data, err = consumeString(rest)
		case 2:
			m.Password, data, err = consumeString(rest)
		case 3:
			var tok string
			tok, data, err = consumeString(rest)
			if err == nil {
				m.Tokens = append(m.Tokens, tok)
			}
		case 5:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.Opus = v != 0
			}
		default:
			data, err = skipField(num, typ, rest)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Ping is the TCP control-stream keepalive (type ID 3), distinct from
// the UDP-tunnel's own Ping payload (package udptunnel).
type Ping struct {
	Timestamp uint64
}

func (m *Ping) Marshal() ([]byte, error) {
	return appendUint64(nil, 1, m.Timestamp), nil
}

func (m *Ping) Unmarshal(data []byte) error {
	*m = Ping{}
	for len(data) > 0 {
		num, typ, rest, err := consumeTag(data)
		if err != nil {
			return err
		}
		if num == 1 {
			v, r, err := consumeVarint(rest)
			if err != nil {
				return err
			}
			m.Timestamp, data = v, r
			continue
		}
		data, err = skipField(num, typ, rest)
		if err != nil {
			return err
		}
	}
	return nil
}

// Reject is sent by the server when it refuses a connection (bad
// version, wrong password, server full, and so on).
type Reject struct {
	Type   int32
	Reason string
}

func (m *Reject) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, uint64(m.Type))
	b = appendString(b, 2, m.Reason)
	return b, nil
}

func (m *Reject) Unmarshal(data []byte) error {
	*m = Reject{}
	for len(data) > 0 {
		num, typ, rest, err := consumeTag(data)
		if err != nil {
			return err
		}
		switch num {
		case 1:
			var v uint64
			v, data, err = consumeVarint(rest)
			m.Type = int32(v)
		case 2:
			m.Reason, data, err = consumeString(rest)
		default:
			data, err = skipField(num, typ, rest)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ServerSync is sent once authentication succeeds, handing the client
// its session ID and the server's welcome text.
type ServerSync struct {
	Session      uint32
	MaxBandwidth uint32
	WelcomeText  string
}

func (m *ServerSync) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, uint64(m.Session))
	b = appendUint64(b, 2, uint64(m.MaxBandwidth))
	b = appendString(b, 3, m.WelcomeText)
	return b, nil
}

func (m *ServerSync) Unmarshal(data []byte) error {
	*m = ServerSync{}
	for len(data) > 0 {
		num, typ, rest, err := consumeTag(data)
		if err != nil {
			return err
		}
		switch num {
		case 1:
			var v uint64
			v, data, err = consumeVarint(rest)
			m.Session = uint32(v)
		case 2:
			var v uint64
			v, data, err = consumeVarint(rest)
			m.MaxBandwidth = uint32(v)
		case 3:
			m.WelcomeText, data, err = consumeString(rest)
		default:
			data, err = skipField(num, typ, rest)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ChannelRemove announces that a channel was deleted.
type ChannelRemove struct {
	ChannelID uint32
}

func (m *ChannelRemove) Marshal() ([]byte, error) {
	return appendUint64(nil, 1, uint64(m.ChannelID)), nil
}

func (m *ChannelRemove) Unmarshal(data []byte) error {
	*m = ChannelRemove{}
	for len(data) > 0 {
		num, typ, rest, err := consumeTag(data)
		if err != nil {
			return err
		}
		if num == 1 {
			v, r, err := consumeVarint(rest)
			if err != nil {
				return err
			}
			m.ChannelID, data = uint32(v), r
			continue
		}
		data, err = skipField(num, typ, rest)
		if err != nil {
			return err
		}
	}
	return nil
}

// ChannelState describes a channel's creation or a change to one of
// its properties. Parent is nil for the root channel.
type ChannelState struct {
	ChannelID   uint32
	Parent      *uint32
	Name        string
	Links       []uint32
	Description string
	Temporary   bool
	Position    int32
}

func (m *ChannelState) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, uint64(m.ChannelID))
	if m.Parent != nil {
		// Written even when zero: presence, not value, is what marks a
		// non-root channel.
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*m.Parent))
	}
	b = appendString(b, 3, m.Name)
	b = appendUint32Slice(b, 4, m.Links)
	b = appendString(b, 5, m.Description)
	b = appendBool(b, 6, m.Temporary)
	if m.Position != 0 {
		b = protowire.AppendTag(b, 7, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.Position)))
	}
	return b, nil
}

func (m *ChannelState) Unmarshal(data []byte) error {
	*m = ChannelState{}
	for len(data) > 0 {
		num, typ, rest, err := consumeTag(data)
		if err != nil {
			return err
		}
		switch num {
		case 1:
			var v uint64
			v, data, err = consumeVarint(rest)
			m.ChannelID = uint32(v)
		case 2:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				parent := uint32(v)
				m.Parent = &parent
			}
		case 3:
			m.Name, data, err = consumeString(rest)
		case 4:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.Links = append(m.Links, uint32(v))
			}
		case 5:
			m.Description, data, err = consumeString(rest)
		case 6:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.Temporary = v != 0
			}
		case 7:
			var v uint64
			v, data, err = consumeVarint(rest)
			m.Position = int32(uint32(v))
		default:
			data, err = skipField(num, typ, rest)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// UserRemove announces that a user disconnected, was kicked, or was
// banned.
type UserRemove struct {
	Session uint32
	Actor   *uint32
	Reason  string
	Ban     bool
}

func (m *UserRemove) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, uint64(m.Session))
	if m.Actor != nil {
		b = appendUint64(b, 2, uint64(*m.Actor))
	}
	b = appendString(b, 3, m.Reason)
	b = appendBool(b, 4, m.Ban)
	return b, nil
}

func (m *UserRemove) Unmarshal(data []byte) error {
	*m = UserRemove{}
	for len(data) > 0 {
		num, typ, rest, err := consumeTag(data)
		if err != nil {
			return err
		}
		switch num {
		case 1:
			var v uint64
			v, data, err = consumeVarint(rest)
			m.Session = uint32(v)
		case 2:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				actor := uint32(v)
				m.Actor = &actor
			}
		case 3:
			m.Reason, data, err = consumeString(rest)
		case 4:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.Ban = v != 0
			}
		default:
			data, err = skipField(num, typ, rest)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// UserState describes a user's join or a change to their state
// (channel move, mute/deafen, comment, and so on).
type UserState struct {
	Session   uint32
	Actor     *uint32
	Name      string
	UserID    *uint32
	ChannelID *uint32
	Mute      bool
	Deaf      bool
	Suppress  bool
	SelfMute  bool
	SelfDeaf  bool
	Comment   string
}

func (m *UserState) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, uint64(m.Session))
	if m.Actor != nil {
		b = appendUint64(b, 2, uint64(*m.Actor))
	}
	b = appendString(b, 3, m.Name)
	if m.UserID != nil {
		b = appendUint64(b, 4, uint64(*m.UserID))
	}
	if m.ChannelID != nil {
		b = appendUint64(b, 5, uint64(*m.ChannelID))
	}
	b = appendBool(b, 6, m.Mute)
	b = appendBool(b, 7, m.Deaf)
	b = appendBool(b, 8, m.Suppress)
	b = appendBool(b, 9, m.SelfMute)
	b = appendBool(b, 10, m.SelfDeaf)
	b = appendString(b, 11, m.Comment)
	return b, nil
}

func (m *UserState) Unmarshal(data []byte) error {
	*m = UserState{}
	for len(data) > 0 {
		num, typ, rest, err := consumeTag(data)
		if err != nil {
			return err
		}
		switch num {
		case 1:
			var v uint64
			v, data, err = consumeVarint(rest)
			m.Session = uint32(v)
		case 2:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				actor := uint32(v)
				m.Actor = &actor
			}
		case 3:
			m.Name, data, err = consumeString(rest)
		case 4:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				id := uint32(v)
				m.UserID = &id
			}
		case 5:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				id := uint32(v)
				m.ChannelID = &id
			}
		case 6:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.Mute = v != 0
			}
		case 7:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.Deaf = v != 0
			}
		case 8:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.Suppress = v != 0
			}
		case 9:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.SelfMute = v != 0
			}
		case 10:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.SelfDeaf = v != 0
			}
		case 11:
			m.Comment, data, err = consumeString(rest)
		default:
			data, err = skipField(num, typ, rest)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// TextMessage is a chat message, either sent by this client or
// received from the server.
type TextMessage struct {
	Actor     uint32
	Sessions  []uint32
	ChannelID []uint32
	TreeID    []uint32
	Message   string
}

func (m *TextMessage) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, uint64(m.Actor))
	b = appendUint32Slice(b, 2, m.Sessions)
	b = appendUint32Slice(b, 3, m.ChannelID)
	b = appendUint32Slice(b, 4, m.TreeID)
	b = appendString(b, 5, m.Message)
	return b, nil
}

func (m *TextMessage) Unmarshal(data []byte) error {
	*m = TextMessage{}
	for len(data) > 0 {
		num, typ, rest, err := consumeTag(data)
		if err != nil {
			return err
		}
		switch num {
		case 1:
			var v uint64
			v, data, err = consumeVarint(rest)
			m.Actor = uint32(v)
		case 2:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.Sessions = append(m.Sessions, uint32(v))
			}
		case 3:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.ChannelID = append(m.ChannelID, uint32(v))
			}
		case 4:
			var v uint64
			v, data, err = consumeVarint(rest)
			if err == nil {
				m.TreeID = append(m.TreeID, uint32(v))
			}
		case 5:
			m.Message, data, err = consumeString(rest)
		default:
			data, err = skipField(num, typ, rest)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// CryptSetup carries the OCB-AES128 key and nonces used to bootstrap
// the (out of scope) UDP audio channel.
type CryptSetup struct {
	Key         []byte
	ClientNonce []byte
	ServerNonce []byte
}

func (m *CryptSetup) Marshal() ([]byte, error) {
	var b []byte
	b = appendBytes(b, 1, m.Key)
	b = appendBytes(b, 2, m.ClientNonce)
	b = appendBytes(b, 3, m.ServerNonce)
	return b, nil
}

func (m *CryptSetup) Unmarshal(data []byte) error {
	*m = CryptSetup{}
	for len(data) > 0 {
		num, typ, rest, err := consumeTag(data)
		if err != nil {
			return err
		}
		switch num {
		case 1:
			m.Key, data, err = consumeBytes(rest)
		case 2:
			m.ClientNonce, data, err = consumeBytes(rest)
		case 3:
			m.ServerNonce, data, err = consumeBytes(rest)
		default:
			data, err = skipField(num, typ, rest)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
