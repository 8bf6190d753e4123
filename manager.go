// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// Manager handles one category of non-object data, identified by GUID.
// Manager chunks lead the data section; hooks bracket the load pipeline.
type Manager interface {
	// GUID identifies the manager's data blocks.
	GUID() CKGUID

	// Name is the human readable manager name.
	Name() string

	// PreLoad runs before the data section is parsed.
	PreLoad(s *Session) error

	// PostLoad runs after every object finished loading.
	PostLoad(s *Session) error

	// LoadData consumes the manager's chunk from the file.
	LoadData(c *Chunk, s *Session) error

	// SaveData produces the manager's chunk, or nil to skip.
	SaveData(s *Session, a *Arena) (*Chunk, error)

	// Fatal reports whether hook failures abort the pipeline. Non-fatal
	// failures land in the session diagnostics and loading continues.
	Fatal() bool
}

// BaseManager is a no-op Manager embeddable by concrete managers.
type BaseManager struct {
	ManagerGUID CKGUID
	ManagerName string
}

// GUID identifies the manager's data blocks.
func (m *BaseManager) GUID() CKGUID { return m.ManagerGUID }

// Name is the human readable manager name.
func (m *BaseManager) Name() string { return m.ManagerName }

// PreLoad runs before the data section is parsed.
func (m *BaseManager) PreLoad(s *Session) error { return nil }

// PostLoad runs after every object finished loading.
func (m *BaseManager) PostLoad(s *Session) error { return nil }

// LoadData consumes the manager's chunk from the file.
func (m *BaseManager) LoadData(c *Chunk, s *Session) error { return nil }

// SaveData produces the manager's chunk, or nil to skip.
func (m *BaseManager) SaveData(s *Session, a *Arena) (*Chunk, error) { return nil, nil }

// Fatal reports whether hook failures abort the pipeline.
func (m *BaseManager) Fatal() bool { return false }

// AttributeManager owns the attribute type table: the names behavioral
// objects reference by index in their attribute blocks.
type AttributeManager struct {
	BaseManager
	Types []string
}

// NewAttributeManager creates the attribute manager.
func NewAttributeManager() *AttributeManager {
	return &AttributeManager{
		BaseManager: BaseManager{
			ManagerGUID: AttributeManagerGUID,
			ManagerName: "Attribute Manager",
		},
	}
}

// RegisterType appends an attribute type and returns its index.
func (m *AttributeManager) RegisterType(name string) int32 {
	m.Types = append(m.Types, name)
	return int32(len(m.Types) - 1)
}

// LoadData reads the attribute type table from the manager chunk.
func (m *AttributeManager) LoadData(c *Chunk, s *Session) error {
	guid, count, err := c.ReadManagerSequence()
	if err != nil {
		return err
	}
	if guid != m.ManagerGUID {
		return errKind(KindInvalidFormat, "attribute manager chunk tagged %s", guid)
	}
	types := make([]string, count)
	for i := range types {
		if types[i], err = c.ReadString(s.arena); err != nil {
			return err
		}
	}
	m.Types = types
	return nil
}

// SaveData writes the attribute type table as a manager sequence chunk.
func (m *AttributeManager) SaveData(s *Session, a *Arena) (*Chunk, error) {
	if len(m.Types) == 0 {
		return nil, nil
	}
	c := NewChunk(0)
	c.DataVersion = classDataVersion
	c.StartWrite()
	if err := c.StartManagerSequence(m.ManagerGUID, len(m.Types)); err != nil {
		return nil, err
	}
	for _, t := range m.Types {
		if err := c.WriteString(t); err != nil {
			return nil, err
		}
	}
	c.CloseChunk()
	return c, nil
}

// PluginInfo describes one plugin known to the host.
type PluginInfo struct {
	GUID     CKGUID `json:"guid"`
	Version  uint32 `json:"version"`
	Category uint32 `json:"category"`
	Name     string `json:"name"`
}

// PluginRegistry is the host's plugin table checked against the file's
// declared dependencies. No DLL is ever loaded; the registry only answers
// presence and version queries.
type PluginRegistry struct {
	byGUID map[CKGUID]PluginInfo
}

// NewPluginRegistry creates an empty registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{byGUID: make(map[CKGUID]PluginInfo)}
}

// Register adds or replaces a plugin entry.
func (r *PluginRegistry) Register(p PluginInfo) {
	r.byGUID[p.GUID] = p
}

// Find returns the plugin entry for the GUID.
func (r *PluginRegistry) Find(g CKGUID) (PluginInfo, bool) {
	p, ok := r.byGUID[g]
	return p, ok
}
