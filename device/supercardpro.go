package device

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SuperCardPro VID/PID, as the teacher's supercardpro package
// registered it.
const (
	scpVendorID  = 0x0403
	scpProductID = 0x6015
)

func init() {
	Register(scpVendorID, scpProductID, newSCPClient)
}

// SCP command codes.
const (
	scpCmdSelA        = 0x80
	scpCmdSelB        = 0x81
	scpCmdDselA       = 0x82
	scpCmdDselB       = 0x83
	scpCmdMtrAOn      = 0x84
	scpCmdMtrBOn      = 0x85
	scpCmdMtrAOff     = 0x86
	scpCmdMtrBOff     = 0x87
	scpCmdSeek0       = 0x88
	scpCmdStepTo      = 0x89
	scpCmdSide        = 0x8d
	scpCmdReadFlux    = 0xa0
	scpCmdGetFluxInfo = 0xa1
	scpCmdSendRAMUSB  = 0xa9
	scpCmdSCPInfo     = 0xd0
)

const scpStatusOK = 0x4f

// scpFluxInfo is one revolution's index time and bitcell count, as
// returned by GETFLUXINFO.
type scpFluxInfo struct {
	IndexTime  uint32
	NrBitcells uint32
}

// scpClient wraps a serial connection to a SuperCard Pro device, the
// one adapter carried through to a working read path.
type scpClient struct {
	port         serial.Port
	serialNumber string
}

func newSCPClient(portDetails *enumerator.PortDetails) (Adapter, error) {
	port, err := serial.Open(portDetails.Name, &serial.Mode{BaudRate: 38400})
	if err != nil {
		return nil, &DeviceError{Op: "open port " + portDetails.Name, Err: err}
	}
	return &scpClient{port: port, serialNumber: portDetails.SerialNumber}, nil
}

// send writes one SCP command packet ([cmd][len][data...][checksum])
// and reads its two-byte response ([echo][status]), matching the
// protocol the teacher's supercardpro.scpSend implements. If readData
// is non-nil, it is filled (via SENDRAM_USB) before the response is
// read.
func (c *scpClient) send(cmd byte, data []byte, readData []byte) error {
	if len(data) > 255 {
		return fmt.Errorf("scp: command data too long (%d bytes)", len(data))
	}

	packet := make([]byte, 3+len(data))
	packet[0] = cmd
	packet[1] = byte(len(data))
	copy(packet[2:], data)
	checksum := byte(0x4a)
	for _, b := range packet[:2+len(data)] {
		checksum += b
	}
	packet[len(packet)-1] = checksum

	if _, err := c.port.Write(packet); err != nil {
		return fmt.Errorf("scp: write command 0x%02x: %w", cmd, err)
	}

	if cmd == scpCmdSendRAMUSB && readData != nil {
		if _, err := io.ReadFull(c.port, readData); err != nil {
			return fmt.Errorf("scp: read RAM transfer: %w", err)
		}
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(c.port, resp); err != nil {
		return fmt.Errorf("scp: read response to 0x%02x: %w", cmd, err)
	}
	if resp[0] != cmd {
		return fmt.Errorf("scp: echo mismatch: sent 0x%02x, got 0x%02x", cmd, resp[0])
	}
	if resp[1] != scpStatusOK {
		return fmt.Errorf("scp: command 0x%02x failed with status 0x%02x", cmd, resp[1])
	}
	return nil
}

type scpInfo struct {
	HardwareMajor, HardwareMinor uint8
	FirmwareMajor, FirmwareMinor uint8
}

func (c *scpClient) info() (scpInfo, error) {
	var info scpInfo
	if err := c.send(scpCmdSCPInfo, nil, nil); err != nil {
		return info, err
	}
	resp := make([]byte, 2)
	if _, err := io.ReadFull(c.port, resp); err != nil {
		return info, fmt.Errorf("scp: read version: %w", err)
	}
	info.HardwareMajor, info.HardwareMinor = resp[0]>>4, resp[0]&0x0f
	info.FirmwareMajor, info.FirmwareMinor = resp[1]>>4, resp[1]&0x0f
	return info, nil
}

func (c *scpClient) PrintStatus() {
	info, err := c.info()
	if err != nil {
		fmt.Printf("SuperCard Pro Firmware Version: unknown (%v)\n", err)
	} else {
		fmt.Printf("SuperCard Pro Hardware Version: %d.%d\n", info.HardwareMajor, info.HardwareMinor)
		fmt.Printf("Firmware Version: %d.%d\n", info.FirmwareMajor, info.FirmwareMinor)
	}
	fmt.Printf("Serial Number: %s\n", c.serialNumber)
}

func (c *scpClient) SelectDrive(drive int) error {
	selCmd, motorCmd := byte(scpCmdSelA), byte(scpCmdMtrAOn)
	if drive == 1 {
		selCmd, motorCmd = scpCmdSelB, scpCmdMtrBOn
	}
	if err := c.send(selCmd, nil, nil); err != nil {
		return fmt.Errorf("scp: select drive %d: %w", drive, err)
	}
	if err := c.send(motorCmd, nil, nil); err != nil {
		return fmt.Errorf("scp: motor on drive %d: %w", drive, err)
	}
	return nil
}

func (c *scpClient) DeselectDrive(drive int) error {
	motorCmd, dselCmd := byte(scpCmdMtrAOff), byte(scpCmdDselA)
	if drive == 1 {
		motorCmd, dselCmd = scpCmdMtrBOff, scpCmdDselB
	}
	if err := c.send(motorCmd, nil, nil); err != nil {
		return fmt.Errorf("scp: motor off drive %d: %w", drive, err)
	}
	if err := c.send(dselCmd, nil, nil); err != nil {
		return fmt.Errorf("scp: deselect drive %d: %w", drive, err)
	}
	return nil
}

func (c *scpClient) Seek(track int) error {
	cyl, side := track>>1, track&1

	if cyl == 0 {
		if err := c.send(scpCmdSeek0, nil, nil); err != nil {
			return fmt.Errorf("scp: seek track 0: %w", err)
		}
	} else if err := c.send(scpCmdStepTo, []byte{byte(cyl)}, nil); err != nil {
		return fmt.Errorf("scp: step to cylinder %d: %w", cyl, err)
	}

	if err := c.send(scpCmdSide, []byte{byte(side)}, nil); err != nil {
		return fmt.Errorf("scp: select side %d: %w", side, err)
	}

	time.Sleep(20 * time.Millisecond) // seek settle, matching the teacher's fixed delay
	return nil
}

// readFlux captures up to 5 revolutions of flux (the SCP hardware
// buffer's fixed capacity) and returns the raw 512KB sample buffer
// plus per-revolution index timing.
func (c *scpClient) readFlux(nrRevs int) ([5]scpFluxInfo, []byte, error) {
	var infos [5]scpFluxInfo

	if err := c.send(scpCmdReadFlux, []byte{byte(nrRevs), 1}, nil); err != nil {
		return infos, nil, fmt.Errorf("scp: READFLUX: %w", err)
	}
	if err := c.send(scpCmdGetFluxInfo, nil, nil); err != nil {
		return infos, nil, fmt.Errorf("scp: GETFLUXINFO: %w", err)
	}

	infoData := make([]byte, 40)
	if _, err := io.ReadFull(c.port, infoData); err != nil {
		return infos, nil, fmt.Errorf("scp: read flux info: %w", err)
	}
	for i := 0; i < 5; i++ {
		off := i * 8
		infos[i].IndexTime = binary.BigEndian.Uint32(infoData[off : off+4])
		infos[i].NrBitcells = binary.BigEndian.Uint32(infoData[off+4 : off+8])
	}

	ramCmd := make([]byte, 8)
	binary.BigEndian.PutUint32(ramCmd[0:4], 0)
	binary.BigEndian.PutUint32(ramCmd[4:8], 512*1024)

	data := make([]byte, 512*1024)
	if err := c.send(scpCmdSendRAMUSB, ramCmd, data); err != nil {
		return infos, nil, fmt.Errorf("scp: read flux RAM: %w", err)
	}

	return infos, data, nil
}

// ReadRevolution captures one revolution and decodes the SCP sample
// buffer's 16-bit big-endian intervals (25ns units, 0 meaning a
// 0x10000-unit carry) into seconds, stopping once the first
// revolution's index time has elapsed.
func (c *scpClient) ReadRevolution() ([]float64, error) {
	infos, data, err := c.readFlux(1)
	if err != nil {
		return nil, err
	}
	if infos[0].IndexTime == 0 {
		return nil, fmt.Errorf("scp: no index pulse detected")
	}
	indexTimeNs := uint64(infos[0].IndexTime) * 25

	var intervals []float64
	var accumNs, elapsedNs uint64
	for off := 0; off+2 <= len(data); off += 2 {
		val := binary.BigEndian.Uint16(data[off : off+2])
		if val == 0 {
			accumNs += 0x10000 * 25
			continue
		}
		accumNs += uint64(val) * 25
		elapsedNs += accumNs
		if elapsedNs > indexTimeNs {
			break
		}
		intervals = append(intervals, float64(accumNs)/1e9)
		accumNs = 0
	}

	if len(intervals) == 0 {
		return nil, fmt.Errorf("scp: no flux transitions captured")
	}
	return intervals, nil
}

func (c *scpClient) Close() error {
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}
