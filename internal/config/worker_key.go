package config

type WorkerKeyStruct struct {
	ClassNotificationsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ClassNotificationsQueue: "class_notifications_queue",
}
