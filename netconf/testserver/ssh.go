package testserver

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net"

	assert "github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// Defines credentials used for test sessions.
const (
	TestUserName = "testUser"
	TestPassword = "testPassword"
)

// channelHandler serves a netconf subsystem channel.
type channelHandler func(ch io.ReadWriteCloser)

// sshServer represents a test SSH Server accepting netconf subsystem requests.
type sshServer struct {
	listener net.Listener
}

// newSSHServer delivers a new test SSH Server, listening on an ephemeral localhost port.
func newSSHServer(t assert.TestingT, config *ssh.ServerConfig, handler channelHandler) *sshServer {
	listener, err := net.Listen("tcp", "localhost:0")
	assert.NoError(t, err, "Listen failed")

	s := &sshServer{listener: listener}
	go s.acceptConnections(config, handler)
	return s
}

// Port delivers the tcp port number on which the server is listening.
func (s *sshServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Address delivers the localhost address on which the server is listening.
func (s *sshServer) Address() string {
	return fmt.Sprintf("localhost:%d", s.Port())
}

func (s *sshServer) close() {
	_ = s.listener.Close()
}

func (s *sshServer) acceptConnections(config *ssh.ServerConfig, handler channelHandler) {
	for {
		nConn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go serveConnection(nConn, config, handler)
	}
}

func serveConnection(nConn net.Conn, config *ssh.ServerConfig, handler channelHandler) {
	_, chch, reqch, err := ssh.NewServerConn(nConn, config)
	if err != nil {
		_ = nConn.Close()
		return
	}

	go ssh.DiscardRequests(reqch)

	// Service the incoming Channel channel.
	for newChannel := range chch {
		dataChan, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}

		// Handle the "subsystem" request; only netconf is served.
		started := make(chan bool, 1)
		go func(in <-chan *ssh.Request) {
			defer close(started)
			for req := range in {
				ok := req.Type == "subsystem" && subsystemName(req.Payload) == "netconf"
				_ = req.Reply(ok, nil)
				if req.Type == "subsystem" {
					select {
					case started <- ok:
					default:
					}
				}
			}
		}(requests)

		go func() {
			defer dataChan.Close()
			if <-started {
				handler(dataChan)
			}
		}()
	}
}

// subsystemName decodes the SSH string carried by a subsystem request.
func subsystemName(payload []byte) string {
	var msg struct{ Name string }
	if err := ssh.Unmarshal(payload, &msg); err != nil {
		return ""
	}
	return msg.Name
}

// serverConfig builds a configuration accepting the given password, or any
// public key for which authorized reports true.
func serverConfig(uname, password string, authorized func(ssh.PublicKey) bool) (*ssh.ServerConfig, error) {
	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == uname && string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if c.User() == uname && authorized(key) {
				return nil, nil
			}
			return nil, fmt.Errorf("public key rejected for %q", c.User())
		},
	}

	hostKey, err := generateHostKey()
	if err != nil {
		return nil, err
	}
	config.AddHostKey(hostKey)
	return config, nil
}

func generateHostKey() (ssh.Signer, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(encodePrivateKeyToPEM(key))
}

// GenerateClientKey delivers a PEM encoded RSA private key and its public key,
// for tests of public key authentication.
func GenerateClientKey() ([]byte, ssh.PublicKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	pub, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	return encodePrivateKeyToPEM(key), pub, nil
}

func encodePrivateKeyToPEM(privateKey *rsa.PrivateKey) []byte {
	privBlock := pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}
	return pem.EncodeToMemory(&privBlock)
}
