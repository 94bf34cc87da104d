package config

import "time"

// Common port numbers used throughout the application.
const (
	// KubeAPIPort is the standard Kubernetes API server port.
	KubeAPIPort = 6443

	// SSHPort is the default SSH port.
	SSHPort = 22
)

// Defaults matching the reference kubeadm deployment.
const (
	DefaultKubernetesVersion = "v1.21.2"
	DefaultPackageVersion    = "1.21.1-00"
	DefaultPodSubnet         = "192.168.0.0/16"
	DefaultServiceSubnet     = "10.96.0.0/12"
	DefaultContainerRuntime  = "docker.io"
	DefaultCNIManifest       = "https://docs.projectcalico.org/v3.19/manifests/calico.yaml"
	DefaultPackageRepository = "deb [signed-by=/etc/apt/keyrings/kubernetes-archive-keyring.gpg] https://apt.kubernetes.io/ kubernetes-xenial main"
	DefaultPackageKeyURL     = "https://packages.cloud.google.com/apt/doc/apt-key.gpg"
	DefaultSSHUser           = "root"
	DefaultTokenTTL          = 24 * time.Hour
	DefaultWorkerMin         = 1
	DefaultWorkerMax         = 3
)

// Credential store backends.
const (
	StoreS3     = "s3"
	StoreMemory = "memory"
)

// Environment variables holding secrets.
const (
	EnvS3AccessKey = "KUBEJOIN_S3_ACCESS_KEY"
	EnvS3SecretKey = "KUBEJOIN_S3_SECRET_KEY"
	EnvHCloudToken = "HCLOUD_TOKEN"
)
