package firmware

// ConfigWriter packs local link attributes into configuration frames.
type ConfigWriter struct {
	ch *Channel
}

func NewConfigWriter(ch *Channel) *ConfigWriter { return &ConfigWriter{ch: ch} }

func (w *ConfigWriter) WriteLocalFabric(vau uint8, z bool, vcu uint8, vl15Credits uint16, crc CRCMask) error {
	f := Fabric{VAU: vau, Z: z, VCU: vcu, VL15Credits: vl15Credits, CRC: crc}
	return w.ch.LoadConfig(FieldLocalFabric, LaneGeneral, f.Pack())
}

func (w *ConfigWriter) WriteLocalLinkWidthPolicy(widths WidthMask, flags LinkModeFlags) error {
	m := LinkMode{Widths: widths, Flags: flags}
	return w.ch.LoadConfig(FieldLocalLinkMode, LaneGeneral, m.Pack())
}

func (w *ConfigWriter) WriteLocalDeviceID(id uint16, rev uint8) error {
	return w.ch.LoadConfig(FieldLocalDeviceID, LaneGeneral, DeviceID{ID: id, Rev: rev}.Pack())
}

func (w *ConfigWriter) WriteTxSettings(speeds SpeedMask, crc CRCMask) error {
	return w.ch.LoadConfig(FieldTxSettings, LaneGeneral, TxSettings{Speeds: speeds, CRC: crc}.Pack())
}

func (w *ConfigWriter) WriteCreditAllocation(c CreditAllocation) error {
	return w.ch.LoadConfig(FieldCreditAllocation, LaneGeneral, c.Pack())
}

// ConfigReader decodes the frames the co-processor collects from the
// link partner and the widths it settles on.
type ConfigReader struct {
	ch *Channel
}

func NewConfigReader(ch *Channel) *ConfigReader { return &ConfigReader{ch: ch} }

func (r *ConfigReader) RemoteFabric() (Fabric, error) {
	v, err := r.ch.ReadConfig(FieldRemoteFabric, LaneGeneral)
	return UnpackFabric(v), err
}

func (r *ConfigReader) RemoteLinkMode() (LinkMode, error) {
	v, err := r.ch.ReadConfig(FieldRemoteLinkWidth, LaneGeneral)
	return UnpackLinkMode(v), err
}

func (r *ConfigReader) RemoteDeviceID() (DeviceID, error) {
	v, err := r.ch.ReadConfig(FieldRemoteDeviceID, LaneGeneral)
	return UnpackDeviceID(v), err
}

// RemotePhy returns the remote firmware revision word.
func (r *ConfigReader) RemotePhy() (uint32, error) {
	return r.ch.ReadConfig(FieldRemotePhy, LaneGeneral)
}

func (r *ConfigReader) ActiveWidths() (ActiveWidths, error) {
	v, err := r.ch.ReadConfig(FieldActiveWidths, LaneGeneral)
	return UnpackActiveWidths(v), err
}

func (r *ConfigReader) LinkDownReasons() (DownReasons, error) {
	v, err := r.ch.ReadConfig(FieldLinkDownReason, LaneGeneral)
	return UnpackDownReasons(v), err
}

// PlannedDownReason returns the reason the neighbor announced before an
// orderly link down.
func (r *ConfigReader) PlannedDownReason() (uint8, error) {
	v, err := r.ch.ReadConfig(FieldPlannedDownReason, LaneGeneral)
	return uint8(v), err
}
